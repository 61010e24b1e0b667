package anyworld

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Default poll timing. The warmup models the realistic minimum remote
// processing time so the first check is not wasted.
const (
	DefaultWarmup   = 10 * time.Second
	DefaultInterval = 5 * time.Second
)

// StatusFunc checks the current state of a model. It must return a
// *TransportError (possibly wrapped) when the remote call cannot complete.
type StatusFunc func(ctx context.Context, modelID string) (*Model, error)

// PollConfig controls a single poll operation. The zero value gets the
// default warmup and interval and waits with no deadline.
type PollConfig struct {
	Warmup   time.Duration // wait before the first status check
	Interval time.Duration // minimum spacing between checks, measured start to start
	Deadline time.Duration // maximum total wait measured from the first check; 0 = unbounded
	Verbose  bool          // log each attempt via the poller's logger

	// Done decides what counts as terminal success. Defaults to
	// AnimateDone(false) when nil.
	Done func(*Model) bool

	// Progress, if set, is called after every non-terminal check.
	Progress func(attempt int, stage string, elapsed time.Duration)
}

// Poller blocks a caller until a model reaches a terminal state, checking
// status at a fixed cadence. It never retries transport failures and never
// issues more than one check at a time; resilience belongs to the caller.
type Poller struct {
	check  StatusFunc
	cfg    PollConfig
	logger *slog.Logger

	// Overridable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller around a status-check capability, applying
// defaults for unset timing fields. A nil logger disables logging.
func NewPoller(check StatusFunc, cfg PollConfig, logger *slog.Logger) *Poller {
	if cfg.Warmup == 0 {
		cfg.Warmup = DefaultWarmup
	}
	if cfg.Warmup < 0 {
		cfg.Warmup = 0
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Done == nil {
		cfg.Done = AnimateDone(false)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{
		check:  check,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		sleep:  ctxSleep,
	}
}

// Wait polls until the model reaches a terminal state or the deadline
// elapses. Terminal outcomes: the finished *Model, *AnimationFailedError, or
// *PollTimeoutError. Transport errors propagate immediately and unmodified.
// Cancelling ctx aborts any wait without issuing a further check.
func (p *Poller) Wait(ctx context.Context, modelID string) (*Model, error) {
	if modelID == "" {
		return nil, errors.New("poll: model ID is required")
	}

	if p.cfg.Warmup > 0 {
		if err := p.sleep(ctx, p.cfg.Warmup); err != nil {
			return nil, err
		}
	}

	var (
		firstCheck time.Time
		lastStage  string
		attempt    int
	)

	for {
		attempt++
		checkStart := p.now()
		if firstCheck.IsZero() {
			firstCheck = checkStart
		}

		model, err := p.check(ctx, modelID)
		if err != nil {
			return nil, err
		}

		if model.Failed() {
			return nil, &AnimationFailedError{
				ModelID:     modelID,
				Stage:       model.Stage,
				Diagnostics: model.Raw,
			}
		}

		if p.cfg.Done(model) {
			if p.cfg.Verbose {
				p.logger.Info("model ready",
					"model_id", modelID,
					"stage", model.Stage,
					"attempts", attempt,
				)
			}
			return model, nil
		}

		lastStage = model.Stage
		elapsed := p.now().Sub(firstCheck)
		if p.cfg.Verbose {
			p.logger.Info("still waiting",
				"model_id", modelID,
				"attempt", attempt,
				"stage", model.Stage,
				"elapsed", elapsed.Round(time.Second).String(),
			)
		}
		if p.cfg.Progress != nil {
			p.cfg.Progress(attempt, model.Stage, elapsed)
		}

		// Next check no earlier than Interval after this one started, so a
		// slow check does not shorten the spacing.
		wait := p.cfg.Interval - p.now().Sub(checkStart)
		if wait < 0 {
			wait = 0
		}

		if p.cfg.Deadline > 0 {
			remaining := p.cfg.Deadline - p.now().Sub(firstCheck)
			if remaining <= 0 {
				return nil, p.timeout(modelID, lastStage, firstCheck)
			}
			// The deadline lands before the next check would: sleep out the
			// remainder and give up without checking again.
			if wait >= remaining {
				if err := p.sleep(ctx, remaining); err != nil {
					return nil, err
				}
				return nil, p.timeout(modelID, lastStage, firstCheck)
			}
		}

		if err := p.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (p *Poller) timeout(modelID, lastStage string, firstCheck time.Time) *PollTimeoutError {
	return &PollTimeoutError{
		ModelID:   modelID,
		LastStage: lastStage,
		Elapsed:   p.now().Sub(firstCheck),
		Deadline:  p.cfg.Deadline,
	}
}

// ctxSleep waits for d or until ctx is cancelled, whichever comes first.
func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
