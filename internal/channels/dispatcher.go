package channels

import (
	"context"
	"time"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
)

// deliverTimeout bounds each network channel attempt.
const deliverTimeout = 10 * time.Second

// DispatchResult reports the outcome of one fan-out. Skipped channels do
// not appear in PerChannel.
type DispatchResult struct {
	AnySucceeded bool            `json:"any_succeeded"`
	PerChannel   map[string]bool `json:"per_channel"`
}

// Dispatcher fans an approved alert out to every configured channel. Each
// channel is attempted independently; one channel's failure never prevents
// another's attempt, and no failure propagates to the caller.
type Dispatcher struct {
	channels []Channel
	logger   *logging.Logger
}

func NewDispatcher(logger *logging.Logger, chs ...Channel) *Dispatcher {
	return &Dispatcher{channels: chs, logger: logger}
}

// Dispatch delivers n to all configured channels and reports per-channel
// outcomes. AnySucceeded is true when at least one channel delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification) DispatchResult {
	result := DispatchResult{PerChannel: make(map[string]bool)}

	for _, ch := range d.channels {
		if !ch.Configured() {
			d.logger.Debugf("Channel %s not configured, skipping", ch.Name())
			continue
		}

		chCtx, cancel := context.WithTimeout(ctx, deliverTimeout)
		err := ch.Deliver(chCtx, n)
		cancel()

		if err != nil {
			d.logger.Errorf("Channel %s delivery failed for key %s: %v", ch.Name(), n.AlertKey, err)
			result.PerChannel[ch.Name()] = false
			continue
		}
		result.PerChannel[ch.Name()] = true
		result.AnySucceeded = true
	}

	return result
}
