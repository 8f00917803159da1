package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/apiguard/internal/metrics"
)

// StepResult is the outcome of one teardown step.
type StepResult struct {
	Step     string        `json:"step"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// stepRunner runs steps in order, recording each outcome and never stopping
// on failure.
type stepRunner struct {
	log     *slog.Logger
	results []StepResult
}

func (r *stepRunner) run(ctx context.Context, name string, fn func(context.Context) error) {
	start := time.Now()
	err := guard(ctx, fn)
	res := StepResult{Step: name, Err: err, Duration: time.Since(start)}
	if err != nil {
		res.Error = err.Error()
		metrics.TeardownStepFailures.WithLabelValues(name).Inc()
		r.log.Warn("Teardown step failed, continuing", "step", name, "error", err)
	} else {
		r.log.Debug("Teardown step done", "step", name, "duration", res.Duration)
	}
	r.results = append(r.results, res)
}

func guard(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx)
}
