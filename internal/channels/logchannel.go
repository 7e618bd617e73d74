package channels

import (
	"context"

	"monitoring-service/internal/config"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
)

// LogChannel writes alerts to the service log. It is the channel of last
// resort and cannot fail.
type LogChannel struct {
	cfg    config.Config
	logger *logging.Logger
}

func NewLogChannel(cfg config.Config, logger *logging.Logger) *LogChannel {
	return &LogChannel{cfg: cfg, logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Configured() bool { return c.cfg.Channels.Log.Enabled }

func (c *LogChannel) Deliver(_ context.Context, n models.Notification) error {
	c.logger.Warnf("ALERT [%s/%s] %s: %s", n.Type, n.Severity, n.Subject, n.Body)
	return nil
}
