// Package notify delivers alerts to one or more channels (Telegram, Discord,
// Kafka, WebSocket subscribers). Deliveries can be filtered by event so
// operators receive only the actions they care about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Event names understood by the filter.
const (
	EventBuy      = "buy"
	EventSell     = "sell"
	EventTransfer = "transfer"
	EventError    = "error"
)

// Sender is one notification channel.
type Sender interface {
	// Send delivers a notification. An empty title sends message alone.
	Send(ctx context.Context, title, message string) error
	// Name identifies the sender in logs and errors (e.g. "telegram").
	Name() string
}

// Notifier fans a notification out to every Sender. Senders run
// concurrently; one failing sender does not stop the others.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. Only events listed in events are forwarded
// by Notify; an empty list forwards everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Allows reports whether event passes the filter.
func (n *Notifier) Allows(event string) bool {
	return len(n.events) == 0 || n.events[strings.ToLower(event)]
}

// Notify sends to all senders when event passes the filter. A filtered event
// is not an error.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Allows(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends to all senders regardless of the filter.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// Len returns the number of configured senders.
func (n *Notifier) Len() int {
	return len(n.senders)
}

func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	errs := make([]error, len(n.senders))
	var wg sync.WaitGroup
	for i, s := range n.senders {
		wg.Add(1)
		go func(i int, s Sender) {
			defer wg.Done()
			if err := send(ctx, s, title, message); err != nil {
				n.logger.ErrorContext(ctx, "sender failed",
					slog.String("sender", s.Name()),
					slog.String("error", err.Error()),
				)
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
				return
			}
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}(i, s)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// send calls s.Send, turning a panic into an error so one broken channel
// cannot take the process down.
func send(ctx context.Context, s Sender, title, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Send(ctx, title, message)
}

// compose joins title and message the way every text channel renders them.
func compose(title, message string) string {
	if title == "" {
		return message
	}
	return title + "\n" + message
}
