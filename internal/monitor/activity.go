package monitor

import (
	"context"
	"sync"
	"time"

	"monitoring-service/internal/alerting"
	"monitoring-service/internal/config"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/store"
)

// ActivityChecker periodically compares the latest reported counts of each
// monitored source against its snapshot and hands the observation to the
// orchestrator. ETL jobs push raw counts through the API; the checker only
// reads them.
type ActivityChecker struct {
	snapshots    store.Snapshots
	orchestrator *alerting.Orchestrator
	logger       *logging.Logger
	interval     time.Duration
	sources      []string
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewActivityChecker(st store.Store, orchestrator *alerting.Orchestrator, logger *logging.Logger, cfg config.Config) *ActivityChecker {
	ctx, cancel := context.WithCancel(context.Background())
	return &ActivityChecker{
		snapshots:    st.Snapshots(),
		orchestrator: orchestrator,
		logger:       logger,
		interval:     cfg.Activity.CheckInterval,
		sources:      cfg.Activity.Sources,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start runs the check loop until Stop is called.
func (c *ActivityChecker) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		c.logger.Infof("Activity checker started (interval %s)", c.interval)
		for {
			select {
			case <-c.ctx.Done():
				c.logger.Infof("Activity checker stopped")
				return
			case <-ticker.C:
				c.RunOnce(c.ctx)
			}
		}
	}()
}

func (c *ActivityChecker) Stop() {
	c.cancel()
}

// RunOnce checks every monitored source. With no configured source list it
// falls back to every source that has ever reported counts. A failure on
// one source never blocks the others.
func (c *ActivityChecker) RunOnce(ctx context.Context) {
	sources := c.sources
	if len(sources) == 0 {
		var err error
		sources, err = c.snapshots.Sources(ctx)
		if err != nil {
			c.logger.Errorf("Activity check: source discovery failed: %v", err)
			return
		}
	}

	for _, source := range sources {
		obs, err := c.snapshots.Counts(ctx, source)
		if err == store.ErrSnapshotNotFound {
			c.logger.Debugf("Activity check: no counts reported yet for %s", source)
			continue
		}
		if err != nil {
			c.logger.Errorf("Activity check: counts read failed for %s: %v", source, err)
			continue
		}
		c.orchestrator.CheckActivity(ctx, obs)
	}
}
