package poller

import (
	"context"
	"log/slog"
	"time"
)

const defaultInterval = time.Second

// Refresher is called on every poll.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Poller struct {
	target    Refresher
	interval  time.Duration
	refreshCh chan struct{}
	logger    *slog.Logger
}

func New(target Refresher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{target: target, interval: interval, refreshCh: make(chan struct{}, 1), logger: logger}
}

// TriggerRefresh schedules an immediate poll. Pending triggers coalesce.
func (p *Poller) TriggerRefresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.refreshCh:
			timer.Stop()
		case <-timer.C:
		}
		if err := p.target.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("status refresh failed", "err", err)
		}
	}
}
