package builtin

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandboxy-go/sandboxy/internal/tool"
)

func init() {
	tool.RegisterBuiltin("mock_email", NewMockEmail)
}

// MockEmail is a mock mail service: inbox, sent folder, drafts.
type MockEmail struct {
	name        string
	description string

	mu     sync.Mutex
	inbox  []map[string]any
	sent   []map[string]any
	drafts []map[string]any
}

// NewMockEmail constructs a MockEmail tool, implementing tool.Factory.
func NewMockEmail(name, description string, config map[string]any) tool.Tool {
	var inbox []map[string]any
	if raw, ok := config["initial_inbox"].([]any); ok {
		for _, v := range raw {
			if m, ok := v.(map[string]any); ok {
				inbox = append(inbox, m)
			}
		}
	}
	return &MockEmail{name: name, description: description, inbox: inbox}
}

func (e *MockEmail) Name() string        { return e.name }
func (e *MockEmail) Description() string { return e.description }

func (e *MockEmail) Actions() []tool.ActionSchema {
	return []tool.ActionSchema{
		{
			Name:        "send",
			Description: "Send an email",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"to":      map[string]any{"type": "string", "description": "Recipient email address"},
					"subject": map[string]any{"type": "string", "description": "Email subject"},
					"body":    map[string]any{"type": "string", "description": "Email body"},
				},
				"required": []string{"to"},
			},
		},
		{
			Name:        "list_inbox",
			Description: "List emails in inbox",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit":       map[string]any{"type": "integer", "description": "Max emails to return"},
					"unread_only": map[string]any{"type": "boolean", "description": "Only unread emails"},
				},
			},
		},
		{
			Name:        "read",
			Description: "Read a specific email by ID",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"email_id": map[string]any{"type": "string", "description": "Email ID to read"}},
				"required":   []string{"email_id"},
			},
		},
		{
			Name:        "save_draft",
			Description: "Save an email as draft",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"to":      map[string]any{"type": "string", "description": "Recipient email"},
					"subject": map[string]any{"type": "string", "description": "Email subject"},
					"body":    map[string]any{"type": "string", "description": "Email body"},
				},
			},
		},
		{
			Name:        "list_sent",
			Description: "List sent emails",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"limit": map[string]any{"type": "integer", "description": "Max emails to return"}},
			},
		},
		{
			Name:        "search",
			Description: "Search emails by content",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string", "description": "Search query"}},
				"required":   []string{"query"},
			},
		},
	}
}

func (e *MockEmail) Invoke(_ context.Context, action string, args map[string]any, _ map[string]any) (tool.Result, error) {
	switch action {
	case "send":
		return e.send(args)
	case "list_inbox":
		return e.listInbox(args)
	case "read":
		return e.read(args)
	case "save_draft":
		return e.saveDraft(args)
	case "list_sent":
		return e.listSent(args)
	case "search":
		return e.search(args)
	default:
		return tool.UnknownActionResult(action), nil
	}
}

func (e *MockEmail) send(args map[string]any) (tool.Result, error) {
	to, ok := tool.Arg(args, "to")
	if !ok {
		return tool.Result{Success: false, Error: "'to' recipient is required"}, nil
	}
	if !strings.Contains(to, "@") {
		return tool.Result{Success: false, Error: "Invalid email address: " + to}, nil
	}
	subject := tool.ArgDefault(args, "subject", "")
	body := tool.ArgDefault(args, "body", "")

	id := uuid.NewString()[:8]
	email := map[string]any{
		"id":      id,
		"to":      []any{to},
		"subject": subject,
		"body":    body,
		"sent_at": time.Now().UTC().Format(time.RFC3339),
		"status":  "sent",
	}

	e.mu.Lock()
	e.sent = append(e.sent, email)
	e.mu.Unlock()

	return tool.Result{Success: true, Data: map[string]any{"email_id": id, "status": "sent", "recipients": []any{to}}}, nil
}

func (e *MockEmail) listInbox(args map[string]any) (tool.Result, error) {
	limit := intArg(args, "limit", 10)
	unreadOnly, _ := args["unread_only"].(bool)

	e.mu.Lock()
	defer e.mu.Unlock()
	var summaries []any
	for _, mail := range e.inbox {
		if unreadOnly {
			if read, _ := mail["read"].(bool); read {
				continue
			}
		}
		if len(summaries) >= limit {
			break
		}
		summaries = append(summaries, map[string]any{
			"id":          mail["id"],
			"from":        mail["from"],
			"subject":     mail["subject"],
			"received_at": mail["received_at"],
			"read":        mail["read"],
		})
	}
	return tool.Result{Success: true, Data: map[string]any{"emails": summaries, "count": float64(len(summaries))}}, nil
}

func (e *MockEmail) read(args map[string]any) (tool.Result, error) {
	id, ok := tool.Arg(args, "email_id")
	if !ok {
		return tool.Result{Success: false, Error: "email_id is required"}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, mail := range e.inbox {
		if mail["id"] == id {
			mail["read"] = true
			return tool.Result{Success: true, Data: cloneMap(mail)}, nil
		}
	}
	for _, mail := range e.sent {
		if mail["id"] == id {
			return tool.Result{Success: true, Data: cloneMap(mail)}, nil
		}
	}
	return tool.Result{Success: false, Error: "Email not found: " + id}, nil
}

func (e *MockEmail) saveDraft(args map[string]any) (tool.Result, error) {
	to := tool.ArgDefault(args, "to", "")
	subject := tool.ArgDefault(args, "subject", "")
	body := tool.ArgDefault(args, "body", "")

	id := uuid.NewString()[:8]
	draft := map[string]any{
		"id":         id,
		"to":         []any{to},
		"subject":    subject,
		"body":       body,
		"created_at": time.Now().UTC().Format(time.RFC3339),
		"status":     "draft",
	}
	e.mu.Lock()
	e.drafts = append(e.drafts, draft)
	e.mu.Unlock()

	return tool.Result{Success: true, Data: map[string]any{"draft_id": id, "status": "saved"}}, nil
}

func (e *MockEmail) listSent(args map[string]any) (tool.Result, error) {
	limit := intArg(args, "limit", 10)
	e.mu.Lock()
	defer e.mu.Unlock()
	var summaries []any
	for i, mail := range e.sent {
		if i >= limit {
			break
		}
		summaries = append(summaries, map[string]any{
			"id":      mail["id"],
			"to":      mail["to"],
			"subject": mail["subject"],
			"sent_at": mail["sent_at"],
		})
	}
	return tool.Result{Success: true, Data: map[string]any{"emails": summaries, "count": float64(len(summaries))}}, nil
}

func (e *MockEmail) search(args map[string]any) (tool.Result, error) {
	query, ok := tool.Arg(args, "query")
	if !ok {
		return tool.Result{Success: false, Error: "query is required"}, nil
	}
	query = strings.ToLower(query)

	e.mu.Lock()
	defer e.mu.Unlock()
	var results []any
	for _, mail := range e.inbox {
		if mailMatches(mail, query) {
			results = append(results, map[string]any{
				"id": mail["id"], "from": mail["from"], "subject": mail["subject"], "location": "inbox",
			})
		}
	}
	for _, mail := range e.sent {
		if mailMatches(mail, query) {
			results = append(results, map[string]any{
				"id": mail["id"], "to": mail["to"], "subject": mail["subject"], "location": "sent",
			})
		}
	}
	return tool.Result{Success: true, Data: map[string]any{"query": query, "results": results, "count": float64(len(results))}}, nil
}

func mailMatches(mail map[string]any, query string) bool {
	subject, _ := mail["subject"].(string)
	body, _ := mail["body"].(string)
	return strings.Contains(strings.ToLower(subject), query) || strings.Contains(strings.ToLower(body), query)
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
