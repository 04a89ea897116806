package notification

// Message is a single outbound notification.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Notifier delivers messages. Delivery is best-effort from the caller's
// perspective; a failed send must never affect the caller's transaction.
type Notifier interface {
	Send(msg Message) error
}
