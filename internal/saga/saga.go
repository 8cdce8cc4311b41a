// Package saga runs a sequence of forward steps, undoing the completed ones
// in reverse order when a later step fails.
package saga

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Step is one forward action and the action that undoes it. Compensate may
// be nil for steps with nothing to undo.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga accumulates the compensations of completed steps.
type Saga struct {
	logger *slog.Logger

	mu    sync.Mutex
	done  []Step
	spent bool
}

// New returns an empty Saga.
func New(logger *slog.Logger) *Saga {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saga{logger: logger}
}

// Run executes steps in order. If one fails, the compensations of the steps
// that already completed in this saga run in reverse and the step's error is
// returned.
func (s *Saga) Run(ctx context.Context, steps ...Step) error {
	for _, step := range steps {
		if err := step.Do(ctx); err != nil {
			s.logger.Warn("saga: step failed",
				slog.String("step", step.Name),
				slog.String("error", err.Error()))
			s.Compensate(ctx)
			return fmt.Errorf("saga: %s: %w", step.Name, err)
		}
		s.Add(step)
	}
	return nil
}

// Add records a completed step so that Compensate undoes it.
func (s *Saga) Add(step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = append(s.done, step)
}

// Compensate undoes every recorded step, newest first. Failures are logged
// and do not stop the remaining compensations. A saga compensates at most once.
// Compensations run detached from ctx's cancellation, so a cancelled caller
// still gets its steps undone.
func (s *Saga) Compensate(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.mu.Lock()
	if s.spent {
		s.mu.Unlock()
		return
	}
	s.spent = true
	done := s.done
	s.done = nil
	s.mu.Unlock()

	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.Warn("saga: compensation failed",
				slog.String("step", step.Name),
				slog.String("error", err.Error()))
			continue
		}
		s.logger.Debug("saga: compensated", slog.String("step", step.Name))
	}
}

// Run executes steps in a fresh saga; see Saga.Run.
func Run(ctx context.Context, logger *slog.Logger, steps ...Step) error {
	return New(logger).Run(ctx, steps...)
}
