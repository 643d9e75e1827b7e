// Package notify fans operator alerts out to chat channels. The dashboard
// raises alerts for transaction outcomes and feed health; each configured
// sender (Telegram, Discord) receives every alert whose event type passed
// the configured filter.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event types raised by the dashboard.
const (
	EventTxConfirmed = "tx_confirmed"
	EventTxFailed    = "tx_failed"
	EventFeedDown    = "feed_down"
	EventFeedUp      = "feed_up"
)

// Sender delivers a single alert over one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches alerts to its senders, filtered by event type.
// An empty filter admits every event.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

func New(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the alert to every sender if the event type is admitted
// by the filter. Sender failures are logged and collected; one failing
// channel never blocks the others.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 && !n.allowed[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
