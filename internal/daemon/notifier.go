package daemon

import (
	"context"
	"time"

	"github.com/remedian/remedian/internal/history"
	"github.com/remedian/remedian/remediator"
	"github.com/remedian/remedian/telemetry"
	"github.com/remedian/remedian/types"
)

// OnceNotifier wraps a notifier and drops notifications for resources the
// history store saw remediated within the window. Only the notification is
// suppressed; the corrective call has already run by the time Publish is
// called. A zero window suppresses nothing.
type OnceNotifier struct {
	base   remediator.Notifier
	hist   *history.Store
	window time.Duration
	logger *telemetry.Logger
}

// NewOnceNotifier wraps base with history-backed notification dedup
func NewOnceNotifier(base remediator.Notifier, hist *history.Store, window time.Duration) *OnceNotifier {
	return &OnceNotifier{
		base:   base,
		hist:   hist,
		window: window,
		logger: telemetry.NewLogger("once-notifier"),
	}
}

// Publish forwards the notification unless one already went out for this
// resource within the window. Implements remediator.Notifier.
func (n *OnceNotifier) Publish(ctx context.Context, notification types.Notification) error {
	seen, err := n.hist.SeenWithin(notification.ResourceID, n.window)
	if err != nil {
		// Dedup is best-effort; a broken lookup must not block the message
		n.logger.WithContext(ctx).Warn().
			Err(err).
			Str("resource_id", notification.ResourceID).
			Msg("history lookup failed, notifying anyway")
	}
	if seen {
		n.logger.WithContext(ctx).Debug().
			Str("resource_id", notification.ResourceID).
			Msg("suppressing duplicate notification")
		return nil
	}
	return n.base.Publish(ctx, notification)
}
