// Package notify delivers customer-facing messages (add-on approval
// requests, cancellation notices) over email or SMS.
package notify

import (
	"context"
	"log"
)

// Message statuses recorded on a delivery attempt.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Result describes the outcome of one delivery attempt. Failures are
// reported in-band so callers can surface them without aborting the
// operation that triggered the send.
type Result struct {
	Status      string
	ErrorDetail string
}

// Notifier sends a message to a customer over the given channel
// ("EMAIL" or "SMS").
type Notifier interface {
	SendMessage(ctx context.Context, channel, recipient, content string) Result
}

// LogNotifier writes outgoing messages to the log instead of an
// external gateway. Used in development and as the default wiring.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) SendMessage(ctx context.Context, channel, recipient, content string) Result {
	log.Printf("NOTIFY [%s] to %s: %s", channel, recipient, content)
	return Result{Status: StatusSent}
}
