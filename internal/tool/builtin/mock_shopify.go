// Package builtin implements the fixed catalog of mock tool types a
// module's environment.tools[] may reference, ported from
// original_source/sandboxy/tools/mock_shopify.go, mock_browser.go and
// mock_email.go. Each tool keeps its own in-memory store seeded from
// config (or built-in defaults) and is safe for concurrent use by one
// running session at a time.
package builtin

import (
	"context"
	"sync"

	"github.com/sandboxy-go/sandboxy/internal/tool"
)

func init() {
	tool.RegisterBuiltin("mock_shopify", NewMockShopify)
}

// MockShopify is an in-memory mock storefront: orders, refunds, customers.
type MockShopify struct {
	name        string
	description string

	mu        sync.Mutex
	orders    map[string]map[string]any
	customers map[string]map[string]any
}

// NewMockShopify constructs a MockShopify tool, implementing tool.Factory.
func NewMockShopify(name, description string, config map[string]any) tool.Tool {
	orders := configOrders(config, "initial_orders", map[string]map[string]any{
		"ORD123": {
			"id":             "ORD123",
			"status":         "Delivered",
			"refunded":       false,
			"total":          99.99,
			"customer_email": "customer@example.com",
			"items": []any{
				map[string]any{"name": "Widget", "quantity": 1.0, "price": 99.99},
			},
			"created_at": "2024-01-15T10:00:00Z",
		},
	})
	customers := configOrders(config, "initial_customers", map[string]map[string]any{
		"CUST001": {
			"id":           "CUST001",
			"email":        "customer@example.com",
			"name":         "John Doe",
			"total_orders": 5.0,
			"total_spent":  450.00,
		},
	})
	return &MockShopify{name: name, description: description, orders: orders, customers: customers}
}

func configOrders(config map[string]any, key string, def map[string]map[string]any) map[string]map[string]any {
	raw, ok := config[key].(map[string]any)
	if !ok {
		return def
	}
	out := make(map[string]map[string]any, len(raw))
	for k, v := range raw {
		if m, ok := v.(map[string]any); ok {
			out[k] = m
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (m *MockShopify) Name() string        { return m.name }
func (m *MockShopify) Description() string { return m.description }

func (m *MockShopify) Actions() []tool.ActionSchema {
	return []tool.ActionSchema{
		{
			Name:        "get_order",
			Description: "Get details of an order by ID",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"order_id": map[string]any{"type": "string", "description": "The order ID"},
				},
				"required": []string{"order_id"},
			},
		},
		{
			Name:        "refund_order",
			Description: "Process a refund for an order",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"order_id": map[string]any{"type": "string", "description": "The order ID to refund"},
					"reason":   map[string]any{"type": "string", "description": "Reason for refund"},
				},
				"required": []string{"order_id"},
			},
		},
		{
			Name:        "list_orders",
			Description: "List orders with optional filters",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status":         map[string]any{"type": "string", "description": "Filter by status"},
					"customer_email": map[string]any{"type": "string", "description": "Filter by customer"},
				},
			},
		},
		{
			Name:        "get_customer",
			Description: "Get customer details",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"customer_id": map[string]any{"type": "string", "description": "The customer ID"},
					"email":       map[string]any{"type": "string", "description": "The customer email"},
				},
			},
		},
		{
			Name:        "update_order_status",
			Description: "Update the status of an order",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"order_id": map[string]any{"type": "string", "description": "The order ID"},
					"status":   map[string]any{"type": "string", "description": "New status"},
				},
				"required": []string{"order_id", "status"},
			},
		},
		{
			Name:        "trigger_event",
			Description: "Trigger a storefront event (payment_gateway_outage, payment_gateway_restored, fraud_alert); used for chaos injection, not by the agent",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"event":    map[string]any{"type": "string", "description": "Event type"},
					"order_id": map[string]any{"type": "string", "description": "Order the event applies to, when relevant"},
				},
				"required": []string{"event"},
			},
		},
	}
}

func (m *MockShopify) Invoke(_ context.Context, action string, args map[string]any, envState map[string]any) (tool.Result, error) {
	switch action {
	case "get_order":
		return m.getOrder(args)
	case "refund_order":
		return m.refundOrder(args, envState)
	case "list_orders":
		return m.listOrders(args)
	case "get_customer":
		return m.getCustomer(args)
	case "update_order_status":
		return m.updateOrderStatus(args)
	case "trigger_event":
		return m.triggerEvent(args, envState)
	default:
		return tool.UnknownActionResult(action), nil
	}
}

// triggerEvent dispatches a chaos-injection event (spec.md §4.6 InjectEvent);
// called directly by the async executor's out-of-band op, never by the
// agent itself, mirroring original_source/sandboxy/tools/mock_lemonade.py's
// _trigger_event dispatch-table shape.
func (m *MockShopify) triggerEvent(args map[string]any, envState map[string]any) (tool.Result, error) {
	event, ok := tool.Arg(args, "event")
	if !ok {
		return tool.Result{Success: false, Error: "event is required"}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch event {
	case "payment_gateway_outage":
		if envState != nil {
			envState["payment_gateway_down"] = true
		}
		return tool.Result{Success: true, Data: map[string]any{
			"event": "payment_gateway_outage", "message": "The payment gateway is down; refunds will fail until it recovers.",
		}}, nil
	case "payment_gateway_restored":
		if envState != nil {
			envState["payment_gateway_down"] = false
		}
		return tool.Result{Success: true, Data: map[string]any{
			"event": "payment_gateway_restored", "message": "The payment gateway is back online.",
		}}, nil
	case "fraud_alert":
		orderID, _ := tool.Arg(args, "order_id")
		order, found := m.orders[orderID]
		if !found {
			return tool.Result{Success: false, Error: "Order not found: " + orderID}, nil
		}
		order["flagged_fraud"] = true
		return tool.Result{Success: true, Data: map[string]any{
			"event": "fraud_alert", "order_id": orderID, "message": "Order flagged for manual fraud review; refunds are blocked.",
		}}, nil
	default:
		return tool.Result{Success: false, Error: "unknown event: " + event}, nil
	}
}

func (m *MockShopify) getOrder(args map[string]any) (tool.Result, error) {
	orderID, ok := tool.Arg(args, "order_id")
	if !ok {
		return tool.Result{Success: false, Error: "order_id is required"}, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, found := m.orders[orderID]
	if !found {
		return tool.Result{Success: false, Error: "Order not found: " + orderID}, nil
	}
	return tool.Result{Success: true, Data: cloneMap(order)}, nil
}

func (m *MockShopify) refundOrder(args map[string]any, envState map[string]any) (tool.Result, error) {
	orderID, ok := tool.Arg(args, "order_id")
	if !ok {
		return tool.Result{Success: false, Error: "order_id is required"}, nil
	}
	reason := tool.ArgDefault(args, "reason", "Customer request")

	if envState != nil {
		if down, _ := envState["payment_gateway_down"].(bool); down {
			return tool.Result{Success: false, Error: "Payment gateway is currently unavailable"}, nil
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	order, found := m.orders[orderID]
	if !found {
		return tool.Result{Success: false, Error: "Order not found: " + orderID}, nil
	}
	if refunded, _ := order["refunded"].(bool); refunded {
		return tool.Result{Success: false, Error: "Order already refunded"}, nil
	}
	if flagged, _ := order["flagged_fraud"].(bool); flagged {
		return tool.Result{Success: false, Error: "Order is flagged for fraud review and cannot be refunded"}, nil
	}

	order["refunded"] = true
	order["status"] = "Refunded"
	order["refund_reason"] = reason
	refundAmount, _ := order["total"].(float64)

	if envState != nil {
		if balance, ok := envState["cash_balance"].(float64); ok {
			envState["cash_balance"] = balance - refundAmount
		}
	}

	return tool.Result{Success: true, Data: map[string]any{
		"order_id":      orderID,
		"status":        "Refunded",
		"refund_amount": refundAmount,
		"reason":        reason,
	}}, nil
}

func (m *MockShopify) listOrders(args map[string]any) (tool.Result, error) {
	statusFilter, _ := args["status"].(string)
	emailFilter, _ := args["customer_email"].(string)

	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []any
	for _, o := range m.orders {
		if statusFilter != "" && o["status"] != statusFilter {
			continue
		}
		if emailFilter != "" && o["customer_email"] != emailFilter {
			continue
		}
		orders = append(orders, cloneMap(o))
	}
	return tool.Result{Success: true, Data: map[string]any{"orders": orders, "count": float64(len(orders))}}, nil
}

func (m *MockShopify) getCustomer(args map[string]any) (tool.Result, error) {
	customerID, _ := args["customer_id"].(string)
	email, _ := args["email"].(string)
	if customerID == "" && email == "" {
		return tool.Result{Success: false, Error: "customer_id or email is required"}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if customerID != "" {
		if c, ok := m.customers[customerID]; ok {
			return tool.Result{Success: true, Data: cloneMap(c)}, nil
		}
		return tool.Result{Success: false, Error: "Customer not found"}, nil
	}
	for _, c := range m.customers {
		if c["email"] == email {
			return tool.Result{Success: true, Data: cloneMap(c)}, nil
		}
	}
	return tool.Result{Success: false, Error: "Customer not found"}, nil
}

func (m *MockShopify) updateOrderStatus(args map[string]any) (tool.Result, error) {
	orderID, ok := tool.Arg(args, "order_id")
	if !ok {
		return tool.Result{Success: false, Error: "order_id is required"}, nil
	}
	newStatus, ok := tool.Arg(args, "status")
	if !ok {
		return tool.Result{Success: false, Error: "status is required"}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	order, found := m.orders[orderID]
	if !found {
		return tool.Result{Success: false, Error: "Order not found: " + orderID}, nil
	}
	order["status"] = newStatus
	return tool.Result{Success: true, Data: map[string]any{"order_id": orderID, "status": newStatus}}, nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
