// Package notify sends lifecycle mails. Delivery is best effort.
package notify

import (
	"context"
	"fmt"
	"time"

	"crewhub.dev/internal/obs"
)

// Message is a single HTML mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the structured log instead of mailing them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	obs.Info("notify: mail not sent, no smtp configured", map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
	})
	return nil
}

// Notifier wraps a Sender with a timeout and failure logging.
type Notifier struct {
	sender  Sender
	timeout time.Duration
}

// New builds a notifier. A nil sender falls back to LogSender.
func New(sender Sender, timeout time.Duration) *Notifier {
	if sender == nil {
		sender = LogSender{}
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Notifier{sender: sender, timeout: timeout}
}

// Deliver sends msg and reports whether it went out. Failures are logged and
// counted, never returned.
func (n *Notifier) Deliver(ctx context.Context, kind string, msg Message) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			obs.NotifyFailures.WithLabelValues(kind).Inc()
			obs.Error("notify: sender panicked", map[string]any{"kind": kind, "to": msg.To, "panic": fmt.Sprint(r)})
			delivered = false
		}
	}()
	if msg.To == "" {
		obs.Warn("notify: message without recipient dropped", map[string]any{"kind": kind})
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.sender.Send(ctx, msg); err != nil {
		obs.NotifyFailures.WithLabelValues(kind).Inc()
		obs.Warn("notify: delivery failed", map[string]any{"kind": kind, "to": msg.To, "error": err})
		return false
	}
	return true
}
