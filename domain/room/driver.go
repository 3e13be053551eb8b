package room

import (
	"context"
	"log/slog"
	"time"
)

const DefaultTickInterval = 150 * time.Millisecond

// Driver advances a service on a fixed wall-clock period, independent of how
// often clients poll.
type Driver struct {
	svc    *InMemoryService
	period time.Duration
	log    *slog.Logger
}

func NewDriver(svc *InMemoryService, period time.Duration, logger *slog.Logger) *Driver {
	if period <= 0 {
		period = DefaultTickInterval
	}
	if logger == nil {
		logger = svc.log
	}
	return &Driver{svc: svc, period: period, log: logger}
}

// Run blocks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	d.log.Info("tick driver started", slog.Duration("period", d.period))
	for {
		select {
		case <-ctx.Done():
			d.log.Info("tick driver stopped")
			return ctx.Err()
		case <-ticker.C:
			d.svc.Tick(ctx)
		}
	}
}
