// internal/domain/notification/entity.go
package notification

// Message is handed to the outbound notification sender. Delivery is
// enqueue-and-forget; reconciliation never waits on it.
type Message struct {
	Template  string            `json:"template"`
	Recipient string            `json:"recipient"`
	Variables map[string]string `json:"variables,omitempty"`
}
