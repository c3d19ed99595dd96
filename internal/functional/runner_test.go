package functional

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_CollectsResultsInOrder(t *testing.T) {
	var running, peak int32
	track := func(err error) func(context.Context, Env) error {
		return func(ctx context.Context, env Env) error {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return err
		}
	}
	scenarios := []Scenario{
		{Name: "a", Run: track(nil)},
		{Name: "b", Run: track(errors.New("boom"))},
		{Name: "c", Run: track(nil)},
		{Name: "d", Run: func(context.Context, Env) error { panic("oops") }},
	}

	summary, err := Runner{Parallel: 2, Driver: DriverHTML}.Run(context.Background(), scenarios)
	require.NoError(t, err)

	require.Len(t, summary.Results, 4)
	for i, want := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, want, summary.Results[i].Scenario)
	}
	assert.True(t, summary.Results[0].Passed)
	assert.False(t, summary.Results[1].Passed)
	assert.EqualError(t, summary.Results[1].Err, "boom")
	assert.False(t, summary.Results[3].Passed)
	assert.Contains(t, summary.Results[3].Err.Error(), "oops")
	assert.Equal(t, 2, summary.Failed())
	assert.False(t, summary.OK())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunner_ScenarioTimeout(t *testing.T) {
	slow := Scenario{Name: "slow", Run: func(ctx context.Context, env Env) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	summary, err := Runner{Timeout: 10 * time.Millisecond}.Run(context.Background(), []Scenario{slow})
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.ErrorIs(t, summary.Results[0].Err, context.DeadlineExceeded)
}

func TestSelect(t *testing.T) {
	all, err := Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	some, err := Select([]string{"isolation", "title"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "title", some[0].Name)
	assert.Equal(t, "isolation", some[1].Name)

	_, err = Select([]string{"nope"})
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	summary := Summary{
		Driver:  DriverHTML,
		BaseURL: "http://localhost:8000",
		Results: []Result{
			{Scenario: "title", Passed: true, Duration: time.Millisecond},
			{Scenario: "isolation", Err: errors.New("page shows another user's item")},
		},
	}
	out := Render(summary)
	assert.Contains(t, out, "Functional tests")
	assert.Contains(t, out, "title")
	assert.Contains(t, out, "page shows another user's item")
	assert.Contains(t, out, "1/2 passed")
}
