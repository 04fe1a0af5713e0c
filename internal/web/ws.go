package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sandboxy-go/sandboxy/internal/runner"
)

const (
	wsWriteWait = 10 * time.Second
	wsSendBuf   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsSession drives one connection: a single interactive session over its
// lifetime, following haasonsaas-nexus/internal/gateway/ws_control_plane.go's
// read-loop/write-loop split (buffered send channel decouples slow
// clients from the session's event producer).
type wsSession struct {
	server *Server
	conn   *websocket.Conn
	send   chan outFrame
	ctx    context.Context
	cancel context.CancelFunc

	sessionID string
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	ws := &wsSession{
		server: s,
		conn:   conn,
		send:   make(chan outFrame, wsSendBuf),
		ctx:    ctx,
		cancel: cancel,
	}
	ws.run()
}

func (ws *wsSession) run() {
	defer ws.close()
	go ws.writeLoop()
	ws.readLoop()
}

func (ws *wsSession) close() {
	ws.cancel()
	close(ws.send)
	_ = ws.conn.Close()
}

func (ws *wsSession) writeLoop() {
	for {
		select {
		case <-ws.ctx.Done():
			return
		case frame, ok := <-ws.send:
			if !ok {
				return
			}
			_ = ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

func (ws *wsSession) enqueue(frame outFrame) {
	select {
	case ws.send <- frame:
	default:
		log.Printf("[Web] send buffer full for session %s, dropping %s frame", ws.sessionID, frame.Type)
	}
}

func (ws *wsSession) readLoop() {
	for {
		var in inFrame
		if err := ws.conn.ReadJSON(&in); err != nil {
			return
		}
		if err := ws.handleFrame(in); err != nil {
			ws.enqueue(outFrame{Type: outError, Message: err.Error()})
		}
	}
}

func (ws *wsSession) handleFrame(in inFrame) error {
	switch in.Type {
	case inStart:
		return ws.handleStart(in)
	case inMessage:
		return ws.server.sessions.ProvideInput(ws.sessionID, in.Content)
	case inPause:
		if err := ws.server.sessions.Pause(ws.sessionID); err != nil {
			return err
		}
		ws.enqueue(outFrame{Type: outPaused})
		return nil
	case inResume:
		if err := ws.server.sessions.Resume(ws.sessionID); err != nil {
			return err
		}
		ws.enqueue(outFrame{Type: outResumed})
		return nil
	case inInjectEvent:
		_, err := ws.server.sessions.InjectEvent(ws.ctx, ws.sessionID, in.ToolName, in.EventKind, in.Args)
		return err
	default:
		return &unknownFrameError{Type: in.Type}
	}
}

func (ws *wsSession) handleStart(in inFrame) error {
	module, err := ws.server.modules(in.ModuleID)
	if err != nil {
		return err
	}
	agent, err := ws.server.agents(in.AgentID)
	if err != nil {
		return err
	}

	sess, err := ws.server.sessions.Create(module, agent, in.AgentID, in.Variables)
	if err != nil {
		return err
	}
	ws.sessionID = sess.ID

	events, err := ws.server.sessions.Start(sess.ID)
	if err != nil {
		return err
	}
	ws.enqueue(outFrame{Type: outStarted, SessionID: sess.ID})
	go ws.pump(events)
	return nil
}

// pump translates the session's runner.Event stream into outbound wire
// frames (spec.md §6), one goroutine per started session.
func (ws *wsSession) pump(events <-chan runner.Event) {
	for {
		select {
		case <-ws.ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case runner.EventAwaitingInput:
				ws.enqueue(outFrame{
					Type:    outAwaitingInput,
					Prompt:  stringField(e.Payload, "prompt"),
					Timeout: e.Payload["timeout"],
				})
			case runner.EventCompleted:
				ws.enqueue(outFrame{Type: outCompleted, Payload: e.Payload["evaluation"]})
			case runner.EventError:
				ws.enqueue(outFrame{Type: outError, Message: stringField(e.Payload, "message")})
			default:
				ws.enqueue(outFrame{Type: outEvent, EventType: e.Type, Payload: e.Payload})
			}
		}
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

type unknownFrameError struct{ Type string }

func (e *unknownFrameError) Error() string {
	return "web: unknown frame type: " + e.Type
}

func writeJSON(w http.ResponseWriter, v any) error {
	return json.NewEncoder(w).Encode(v)
}
