package tool

import (
	"testing"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&dummyTool{name: "shopify"})

	got, ok := r.Get("shopify")
	if !ok {
		t.Fatal("expected to find registered tool")
	}
	if got.Name() != "shopify" {
		t.Errorf("got %q", got.Name())
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("Get on unregistered name should return false")
	}
}

func TestRegistryListSortedByName(t *testing.T) {
	r := NewRegistry()
	r.Register(&dummyTool{name: "zeta"})
	r.Register(&dummyTool{name: "alpha"})
	r.Register(&dummyTool{name: "mu"})

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(list))
	}
	if list[0].Name() != "alpha" || list[1].Name() != "mu" || list[2].Name() != "zeta" {
		t.Errorf("expected sorted order, got %v, %v, %v", list[0].Name(), list[1].Name(), list[2].Name())
	}
}

func TestWireNameRoundTrip(t *testing.T) {
	wire := WireName("shopify", "refund_order")
	if wire != "shopify__refund_order" {
		t.Errorf("WireName = %q", wire)
	}
	toolName, action, ok := SplitWireName(wire)
	if !ok || toolName != "shopify" || action != "refund_order" {
		t.Errorf("SplitWireName = %q, %q, %v", toolName, action, ok)
	}
}

func TestSplitWireNameSplitsOnFirstSeparatorOnly(t *testing.T) {
	// Action names may themselves contain underscores; only the tool name
	// / action boundary uses the double-underscore separator.
	toolName, action, ok := SplitWireName("my_tool__do__thing")
	if !ok {
		t.Fatal("expected successful split")
	}
	if toolName != "my_tool" || action != "do__thing" {
		t.Errorf("got tool=%q action=%q", toolName, action)
	}
}

func TestSplitWireNameRejectsMissingSeparator(t *testing.T) {
	if _, _, ok := SplitWireName("notwireformat"); ok {
		t.Error("expected ok=false for a name with no separator")
	}
}

func TestAllActionsFlattensAcrossTools(t *testing.T) {
	r := NewRegistry()
	r.Register(&dummyTool{name: "a"})
	r.Register(&dummyTool{name: "b"})

	actions := r.AllActions()
	if len(actions) != 2 {
		t.Fatalf("expected 2 flattened actions, got %d", len(actions))
	}
	if actions[0].WireName != "a__ping" || actions[1].WireName != "b__ping" {
		t.Errorf("unexpected wire names: %v", actions)
	}
}

func TestBuildRegistryRejectsUnknownToolType(t *testing.T) {
	_, err := BuildRegistry([]ToolRef{{Name: "x", Type: "not_a_real_type"}})
	if err == nil {
		t.Fatal("expected error for unknown tool type")
	}
	if _, ok := err.(*UnknownToolError); !ok {
		t.Errorf("expected *UnknownToolError, got %T", err)
	}
}

func TestBuildRegistryConstructsRegisteredBuiltins(t *testing.T) {
	RegisterBuiltin("test_echo", func(name, description string, config map[string]any) Tool {
		return &dummyTool{name: name}
	})
	defer delete(builtinFactories, "test_echo")

	reg, err := BuildRegistry([]ToolRef{{Name: "echo1", Type: "test_echo"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := reg.Get("echo1"); !ok {
		t.Error("expected built registry to contain constructed tool")
	}
}
