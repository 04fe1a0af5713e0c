package web_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sandboxy-go/sandboxy/internal/agentiface"
	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/session"
	"github.com/sandboxy-go/sandboxy/internal/web"
)

func testModule(id string) *mdl.Module {
	return &mdl.Module{
		ID:          id,
		Environment: mdl.Environment{InitialState: map[string]any{}},
		Steps: []mdl.Step{
			{ID: "s1", Action: mdl.ActionInjectUser, Params: map[string]any{"content": "hi"}},
		},
		Branches: map[string][]mdl.Step{},
	}
}

func newTestServerAndDial(t *testing.T) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	mgr := session.NewManager()
	modules := func(id string) (*mdl.Module, error) { return testModule(id), nil }
	agents := func(id string) (agentiface.Agent, error) { return agentiface.NewStubAgent(), nil }

	srv := web.NewServer(mgr, modules, agents, nil)
	ts := httptest.NewServer(srv.TestHandler())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return ts, conn
}

func TestWebSocketStartStreamsStartedThenCompleted(t *testing.T) {
	ts, conn := newTestServerAndDial(t)
	defer ts.Close()
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{
		"type": "start", "module_id": "m1", "agent_id": "stub",
	}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var sawStarted, sawUserEvent, sawCompleted bool
	for i := 0; i < 5; i++ {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		switch frame["type"] {
		case "started":
			sawStarted = true
		case "event":
			if frame["event_type"] == "user" {
				sawUserEvent = true
			}
		case "completed":
			sawCompleted = true
		}
		if sawCompleted {
			break
		}
	}
	if !sawStarted {
		t.Error("expected a started frame")
	}
	if !sawUserEvent {
		t.Error("expected a user event frame")
	}
	if !sawCompleted {
		t.Error("expected a completed frame")
	}
}

func TestWebSocketUnknownFrameTypeReportsError(t *testing.T) {
	ts, conn := newTestServerAndDial(t)
	defer ts.Close()
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "bogus"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if frame["type"] != "error" {
		t.Errorf("expected an error frame, got %+v", frame)
	}
}

func TestHealthEndpointReportsActiveSessionCount(t *testing.T) {
	ts, conn := newTestServerAndDial(t)
	defer ts.Close()
	defer conn.Close()

	resp, err := httpGet(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("unexpected health response: %+v", resp)
	}
	// The connection is open but no start frame was sent.
	if resp["active_sessions"] != 0.0 {
		t.Errorf("expected active_sessions 0, got %+v", resp)
	}
}

func httpGet(url string) (map[string]any, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
