// Package notify defines the notification dispatch boundary of the
// matchmaking engine. Delivery to the chat platform (push messages to the
// two parties) is an external collaborator; the lifecycle fires events at
// it and never lets a delivery failure affect a committed transaction.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Event identifies what happened to a chat request.
type Event string

// Events emitted by the request lifecycle.
const (
	EventRequestReceived Event = "request_received"
	EventRequestAccepted Event = "request_accepted"
	EventRequestRejected Event = "request_rejected"
	EventRequestExpired  Event = "request_expired"
)

// Notification is one delivery to one user.
type Notification struct {
	Event     Event
	UserID    string
	PartnerID string
	RequestID uint
	// ChatID is set only on EventRequestAccepted.
	ChatID string
}

// Notifier delivers notifications. Implementations may block; the lifecycle
// always invokes them fire-and-forget, after the owning transaction has
// committed. The returned ref is an opaque delivery handle (platform message
// ID) or empty; errors are informational only and never affect the
// lifecycle.
type Notifier interface {
	Notify(ctx context.Context, n Notification) (ref string, err error)
}

// LogNotifier is the default Notifier: it writes the event to the
// structured log. Deployments swap in a platform-specific implementation.
type LogNotifier struct {
	Log zerolog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(_ context.Context, n Notification) (string, error) {
	l.Log.Info().
		Str("event", string(n.Event)).
		Str("user_id", n.UserID).
		Str("partner_id", n.PartnerID).
		Uint("request_id", n.RequestID).
		Str("chat_id", n.ChatID).
		Msg("notification dispatched")
	return "", nil
}
