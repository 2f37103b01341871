package realtime

import (
	"log/slog"

	"github.com/bridgetrack/bridgetrack/internal/core"
)

// Notifier implements core.Notifier on top of a Registry. Events are
// fire-and-forget: nothing is acknowledged, retried or replayed, and an
// observer that connects after Notify returns will not see the event.
type Notifier struct {
	reg *Registry
}

// NewNotifier returns a Notifier publishing to reg.
func NewNotifier(reg *Registry) *Notifier {
	return &Notifier{reg: reg}
}

// Notify enqueues ev for every observer registered right now.
func (n *Notifier) Notify(ev core.Event) {
	delivered := n.reg.Publish(ev)
	slog.Debug("event published", "kind", ev.Kind, "event_id", ev.ID, "observers", delivered)
}

var _ core.Notifier = (*Notifier)(nil)
