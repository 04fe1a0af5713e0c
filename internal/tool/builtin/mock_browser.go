package builtin

import (
	"context"
	"strings"
	"sync"

	"github.com/sandboxy-go/sandboxy/internal/tool"
)

func init() {
	tool.RegisterBuiltin("mock_browser", NewMockBrowser)
}

// MockBrowser is a mock browser over a fixed set of canned pages.
type MockBrowser struct {
	name        string
	description string

	mu         sync.Mutex
	pages      map[string]string
	currentURL string
	history    []string
}

// NewMockBrowser constructs a MockBrowser tool, implementing tool.Factory.
func NewMockBrowser(name, description string, config map[string]any) tool.Tool {
	pages := defaultPages()
	if raw, ok := config["pages"].(map[string]any); ok {
		pages = map[string]string{}
		for k, v := range raw {
			if s, ok := v.(string); ok {
				pages[k] = s
			}
		}
	}
	return &MockBrowser{name: name, description: description, pages: pages}
}

func defaultPages() map[string]string {
	return map[string]string{
		"https://example.com":         "<html><body><h1>Example Domain</h1></body></html>",
		"https://example.com/policy":  "Refund Policy: Refunds are allowed within 30 days of purchase. Items must be in original condition. Digital products are non-refundable.",
		"https://example.com/faq":     "FAQ:\nQ: How do I track my order?\nA: Use the tracking number sent to your email.\n\nQ: What is your return policy?\nA: Items can be returned within 30 days.",
		"https://example.com/contact": "Contact Us:\nEmail: support@example.com\nPhone: 1-800-EXAMPLE\nHours: Mon-Fri 9AM-5PM EST",
	}
}

func (b *MockBrowser) Name() string        { return b.name }
func (b *MockBrowser) Description() string { return b.description }

func (b *MockBrowser) Actions() []tool.ActionSchema {
	return []tool.ActionSchema{
		{
			Name:        "open",
			Description: "Open a URL and return its content",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"url": map[string]any{"type": "string", "description": "The URL to open"}},
				"required":   []string{"url"},
			},
		},
		{
			Name:        "navigate",
			Description: "Alias for open",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"url": map[string]any{"type": "string", "description": "The URL to open"}},
				"required":   []string{"url"},
			},
		},
		{
			Name:        "get_content",
			Description: "Get the content of the current page",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			Name:        "search",
			Description: "Search for text within available pages",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string", "description": "Text to search for"}},
				"required":   []string{"query"},
			},
		},
		{
			Name:        "back",
			Description: "Go back to the previous page",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			Name:        "get_current_url",
			Description: "Get the currently open URL",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

func (b *MockBrowser) Invoke(_ context.Context, action string, args map[string]any, _ map[string]any) (tool.Result, error) {
	switch action {
	case "open", "navigate":
		return b.open(args)
	case "get_content":
		return b.getContent()
	case "search":
		return b.search(args)
	case "back":
		return b.back()
	case "get_current_url":
		return tool.Result{Success: true, Data: map[string]any{"url": b.currentURL}}, nil
	default:
		return tool.UnknownActionResult(action), nil
	}
}

func (b *MockBrowser) open(args map[string]any) (tool.Result, error) {
	url, ok := tool.Arg(args, "url")
	if !ok {
		return tool.Result{Success: false, Error: "url is required"}, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	content, found := b.pages[url]
	if !found {
		return tool.Result{Success: false, Error: "Page not found: " + url, Data: map[string]any{"status_code": 404.0}}, nil
	}
	if b.currentURL != "" {
		b.history = append(b.history, b.currentURL)
	}
	b.currentURL = url
	return tool.Result{Success: true, Data: map[string]any{"url": url, "content": content, "status_code": 200.0}}, nil
}

func (b *MockBrowser) getContent() (tool.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentURL == "" {
		return tool.Result{Success: false, Error: "No page is currently open"}, nil
	}
	return tool.Result{Success: true, Data: map[string]any{"url": b.currentURL, "content": b.pages[b.currentURL]}}, nil
}

func (b *MockBrowser) search(args map[string]any) (tool.Result, error) {
	query, ok := tool.Arg(args, "query")
	if !ok {
		return tool.Result{Success: false, Error: "query is required"}, nil
	}
	query = strings.ToLower(query)

	b.mu.Lock()
	defer b.mu.Unlock()
	var results []any
	for url, content := range b.pages {
		lower := strings.ToLower(content)
		idx := strings.Index(lower, query)
		if idx < 0 {
			continue
		}
		start := idx - 50
		if start < 0 {
			start = 0
		}
		end := idx + len(query) + 50
		if end > len(content) {
			end = len(content)
		}
		snippet := content[start:end]
		if start > 0 {
			snippet = "..." + snippet
		}
		if end < len(content) {
			snippet = snippet + "..."
		}
		results = append(results, map[string]any{"url": url, "snippet": snippet})
	}
	return tool.Result{Success: true, Data: map[string]any{"query": query, "results": results, "count": float64(len(results))}}, nil
}

func (b *MockBrowser) back() (tool.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.history) == 0 {
		return tool.Result{Success: false, Error: "No history to go back to"}, nil
	}
	previous := b.history[len(b.history)-1]
	b.history = b.history[:len(b.history)-1]
	b.currentURL = previous
	return tool.Result{Success: true, Data: map[string]any{"url": previous, "content": b.pages[previous]}}, nil
}
