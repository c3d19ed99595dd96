package functional

import (
	"context"
	"fmt"
	"time"

	"superlists/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one scenario.
type Result struct {
	Scenario string
	Passed   bool
	Err      error
	Duration time.Duration
}

// Summary collects results in suite order.
type Summary struct {
	Driver  string
	BaseURL string
	Results []Result
	Elapsed time.Duration
}

// Failed returns the number of failing scenarios.
func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if !r.Passed {
			n++
		}
	}
	return n
}

// OK reports whether every scenario passed.
func (s Summary) OK() bool { return s.Failed() == 0 }

// Runner executes scenarios concurrently.
type Runner struct {
	Env      Env
	Driver   string
	Parallel int
	// Timeout bounds each scenario; zero means no limit beyond ctx.
	Timeout time.Duration
}

// Run executes every scenario and returns the summary. A failing scenario
// does not stop the others; the returned error is reserved for ctx.
func (r Runner) Run(ctx context.Context, scenarios []Scenario) (Summary, error) {
	log := logging.Get(logging.CategoryFunctional)
	start := time.Now()
	results := make([]Result, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	if r.Parallel > 0 {
		g.SetLimit(r.Parallel)
	}
	for i, sc := range scenarios {
		g.Go(func() error {
			results[i] = r.runOne(gctx, sc)
			res := results[i]
			if res.Passed {
				log.Info("scenario passed", zap.String("scenario", sc.Name), zap.Duration("duration", res.Duration))
			} else {
				log.Warn("scenario failed", zap.String("scenario", sc.Name), zap.Error(res.Err))
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{
		Driver:  r.Driver,
		BaseURL: r.Env.BaseURL,
		Results: results,
		Elapsed: time.Since(start),
	}
	return summary, ctx.Err()
}

func (r Runner) runOne(ctx context.Context, sc Scenario) (res Result) {
	res.Scenario = sc.Name
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			res.Passed = false
			res.Err = fmt.Errorf("panic: %v", v)
		}
		res.Duration = time.Since(start)
	}()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	env := r.Env
	env.scenario = sc.Name
	if err := sc.Run(ctx, env); err != nil {
		res.Err = err
		return res
	}
	res.Passed = true
	return res
}
