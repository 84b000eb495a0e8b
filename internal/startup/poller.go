package startup

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often the poller re-checks while the
// terminal waits for an administrator.
const DefaultPollInterval = 30 * time.Second

// PollerConfig holds configuration for the approval poller.
type PollerConfig struct {
	Manager *Manager

	// Interval between checks. Default: DefaultPollInterval.
	Interval time.Duration

	// OnChange is invoked after every check whose state differs from the
	// previous one. Optional.
	OnChange func(Result)

	// Logger for poller operations.
	Logger zerolog.Logger
}

// Poller re-runs the startup check on a fixed interval until the
// terminal is approved or the context ends. It backs the kiosk's
// unattended path; the UI shell's pull-to-refresh goes straight through
// the manager.
type Poller struct {
	manager  *Manager
	interval time.Duration
	onChange func(Result)
	logger   zerolog.Logger
}

// NewPoller creates a new approval poller.
func NewPoller(cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		manager:  cfg.Manager,
		interval: interval,
		onChange: cfg.OnChange,
		logger:   cfg.Logger.With().Str("component", "poller").Logger(),
	}
}

// Run checks immediately, then on every tick, and returns once the
// terminal is approved or the context is cancelled. The final result is
// returned so the caller can log or act on it.
func (p *Poller) Run(ctx context.Context) Result {
	last := p.check(ctx, Result{State: StateLoading})
	if last.State == StateApproved {
		return last
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Str("state", string(last.State)).Msg("poller stopped")
			return last
		case <-ticker.C:
			last = p.check(ctx, last)
			if last.State == StateApproved {
				return last
			}
		}
	}
}

func (p *Poller) check(ctx context.Context, previous Result) Result {
	result := p.manager.CheckState(ctx)

	if result.State != previous.State {
		p.logger.Info().
			Str("from", string(previous.State)).
			Str("to", string(result.State)).
			Msg("startup state changed")
		if p.onChange != nil {
			p.onChange(result)
		}
	}
	return result
}
