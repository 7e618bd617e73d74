// Package channels contains the alert delivery channels and the dispatcher
// that fans one notification out to all of them.
package channels

import (
	"context"

	"monitoring-service/internal/models"
)

// Channel is one delivery mechanism capable of attempting to deliver a
// notification. Implementations must be safe for concurrent use.
type Channel interface {
	// Name identifies the channel in dispatch results and logs.
	Name() string

	// Configured reports whether the channel has everything it needs to
	// attempt delivery. Unconfigured channels are skipped, not failed.
	Configured() bool

	// Deliver attempts to deliver the notification. The context carries the
	// per-channel timeout; a timeout is a delivery failure.
	Deliver(ctx context.Context, n models.Notification) error
}
