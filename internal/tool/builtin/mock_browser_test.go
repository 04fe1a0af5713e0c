package builtin

import (
	"context"
	"testing"
)

func TestMockBrowserOpenAndGetContent(t *testing.T) {
	tl := NewMockBrowser("browser", "", nil)
	res, err := tl.Invoke(context.Background(), "open", map[string]any{"url": "https://example.com/faq"}, nil)
	if err != nil || !res.Success {
		t.Fatalf("expected success, got %v err=%v", res, err)
	}

	current, _ := tl.Invoke(context.Background(), "get_current_url", nil, nil)
	if current.Data["url"] != "https://example.com/faq" {
		t.Errorf("current url = %v", current.Data["url"])
	}
}

func TestMockBrowserOpenUnknownURL(t *testing.T) {
	tl := NewMockBrowser("browser", "", nil)
	res, _ := tl.Invoke(context.Background(), "open", map[string]any{"url": "https://nope.example"}, nil)
	if res.Success {
		t.Error("expected failure opening unknown url")
	}
	if res.Data["status_code"] != 404.0 {
		t.Errorf("expected 404 status_code, got %v", res.Data["status_code"])
	}
}

func TestMockBrowserBackNavigatesHistory(t *testing.T) {
	tl := NewMockBrowser("browser", "", nil)
	tl.Invoke(context.Background(), "open", map[string]any{"url": "https://example.com"}, nil)
	tl.Invoke(context.Background(), "open", map[string]any{"url": "https://example.com/faq"}, nil)

	res, err := tl.Invoke(context.Background(), "back", nil, nil)
	if err != nil || !res.Success {
		t.Fatalf("expected success, got %v err=%v", res, err)
	}
	if res.Data["url"] != "https://example.com" {
		t.Errorf("expected to go back to https://example.com, got %v", res.Data["url"])
	}
}

func TestMockBrowserSearchFindsSnippet(t *testing.T) {
	tl := NewMockBrowser("browser", "", nil)
	res, err := tl.Invoke(context.Background(), "search", map[string]any{"query": "30 days"}, nil)
	if err != nil || !res.Success {
		t.Fatalf("expected success, got %v err=%v", res, err)
	}
	if res.Data["count"].(float64) < 1 {
		t.Errorf("expected at least one match, got %v", res.Data["count"])
	}
}
