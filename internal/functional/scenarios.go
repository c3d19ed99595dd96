package functional

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"superlists/internal/logging"

	"go.uber.org/zap"
)

// Page elements the scenarios look for.
const (
	ExpectedTitle       = "To do list"
	ExpectedHeader      = "Lists"
	ExpectedPlaceholder = "Write thing to do"

	selectorHeader    = "h1"
	selectorNewItem   = "input#id_new_item"
	selectorListTable = "table#id_list_table"
	selectorBody      = "body"
)

var listURLPattern = regexp.MustCompile(`/lists/.+`)

// Env is what a scenario runs against.
type Env struct {
	BaseURL string
	Factory Factory
	Fixture Fixture
	// Wait bounds how long an assertion is retried before failing.
	Wait time.Duration
	// ScreenshotDir receives a PNG of the page whenever a scenario fails on
	// a driver that can take one. Empty disables screenshots.
	ScreenshotDir string

	scenario string
}

func (e Env) homeURL() string {
	return strings.TrimRight(e.BaseURL, "/") + "/"
}

func (e Env) wait() time.Duration {
	if e.Wait <= 0 {
		return 3 * time.Second
	}
	return e.Wait
}

// Scenario is one acceptance check.
type Scenario struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env Env) error
}

// Scenarios returns the acceptance suite in a stable order.
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "title", Description: "landing page title names the app", Run: checkTitle},
		{Name: "header", Description: "landing page header mentions lists", Run: checkHeader},
		{Name: "placeholder", Description: "new item input invites a to-do", Run: checkPlaceholder},
		{Name: "numbered_rows", Description: "each submitted item appears numbered in order", Run: checkNumberedRows},
		{Name: "list_url", Description: "first submission lands on the list's own URL", Run: checkListURL},
		{Name: "isolation", Description: "a second user sees none of the first user's items", Run: checkIsolation},
	}
}

// Select returns the scenarios whose names are listed, in suite order.
// No names selects the whole suite.
func Select(names []string) ([]Scenario, error) {
	all := Scenarios()
	if len(names) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Scenario
	for _, s := range all {
		if want[s.Name] {
			out = append(out, s)
			delete(want, s.Name)
		}
	}
	if len(want) > 0 {
		for _, n := range names {
			if want[n] {
				return nil, fmt.Errorf("unknown scenario %q", n)
			}
		}
	}
	return out, nil
}

// withDriver opens a session, runs fn and closes the session.
func withDriver(ctx context.Context, env Env, fn func(Driver) error) error {
	d, err := env.Factory.NewDriver(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer d.Close()
	if err := fn(d); err != nil {
		if path := saveScreenshot(ctx, env, d); path != "" {
			return fmt.Errorf("%w (screenshot: %s)", err, path)
		}
		return err
	}
	return nil
}

// saveScreenshot stores the driver's current page under env.ScreenshotDir and
// returns the file path, or "" when nothing was saved.
func saveScreenshot(ctx context.Context, env Env, d Driver) string {
	shooter, ok := d.(Screenshotter)
	if env.ScreenshotDir == "" || !ok {
		return ""
	}
	log := logging.Get(logging.CategoryFunctional)

	// The scenario context may be the reason for the failure.
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	png, err := shooter.Screenshot(shotCtx)
	if err != nil {
		log.Warn("screenshot failed", zap.String("scenario", env.scenario), zap.Error(err))
		return ""
	}
	if err := os.MkdirAll(env.ScreenshotDir, 0755); err != nil {
		log.Warn("screenshot dir", zap.Error(err))
		return ""
	}
	name := env.scenario
	if name == "" {
		name = "scenario"
	}
	f, err := os.CreateTemp(env.ScreenshotDir, name+"-*.png")
	if err != nil {
		log.Warn("screenshot file", zap.Error(err))
		return ""
	}
	defer f.Close()
	if _, err := f.Write(png); err != nil {
		log.Warn("screenshot write", zap.Error(err))
		return ""
	}
	return f.Name()
}

// eventually retries check until it succeeds or the wait elapses, returning
// the last failure.
func eventually(ctx context.Context, wait time.Duration, check func() error) error {
	deadline := time.Now().Add(wait)
	for {
		err := check()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func checkTitle(ctx context.Context, env Env) error {
	return withDriver(ctx, env, func(d Driver) error {
		if err := d.Open(ctx, env.homeURL()); err != nil {
			return err
		}
		title, err := d.Title(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(title, ExpectedTitle) {
			return fmt.Errorf("title %q does not contain %q", title, ExpectedTitle)
		}
		return nil
	})
}

func checkHeader(ctx context.Context, env Env) error {
	return withDriver(ctx, env, func(d Driver) error {
		if err := d.Open(ctx, env.homeURL()); err != nil {
			return err
		}
		header, err := d.Text(ctx, selectorHeader)
		if err != nil {
			return err
		}
		if !strings.Contains(header, ExpectedHeader) {
			return fmt.Errorf("header %q does not contain %q", header, ExpectedHeader)
		}
		return nil
	})
}

func checkPlaceholder(ctx context.Context, env Env) error {
	return withDriver(ctx, env, func(d Driver) error {
		if err := d.Open(ctx, env.homeURL()); err != nil {
			return err
		}
		got, err := d.Attribute(ctx, selectorNewItem, "placeholder")
		if err != nil {
			return err
		}
		if got != ExpectedPlaceholder {
			return fmt.Errorf("placeholder = %q, want %q", got, ExpectedPlaceholder)
		}
		return nil
	})
}

// waitForRow waits until the list table shows want as one of its rows.
func waitForRow(ctx context.Context, env Env, d Driver, want string) error {
	return eventually(ctx, env.wait(), func() error {
		rows, err := d.Rows(ctx, selectorListTable)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r == want {
				return nil
			}
		}
		return fmt.Errorf("no row %q in table, rows: %q", want, rows)
	})
}

func checkNumberedRows(ctx context.Context, env Env) error {
	return withDriver(ctx, env, func(d Driver) error {
		if err := d.Open(ctx, env.homeURL()); err != nil {
			return err
		}
		for i, item := range env.Fixture.Items {
			if err := d.Submit(ctx, selectorNewItem, item); err != nil {
				return fmt.Errorf("submit %q: %w", item, err)
			}
			if err := waitForRow(ctx, env, d, fmt.Sprintf("%d. %s", i+1, item)); err != nil {
				return err
			}
		}
		rows, err := d.Rows(ctx, selectorListTable)
		if err != nil {
			return err
		}
		if len(rows) != len(env.Fixture.Items) {
			return fmt.Errorf("table has %d rows, want %d", len(rows), len(env.Fixture.Items))
		}
		return nil
	})
}

// startList opens the landing page, submits item and returns the list URL.
func startList(ctx context.Context, env Env, d Driver, item string) (string, error) {
	if err := d.Open(ctx, env.homeURL()); err != nil {
		return "", err
	}
	if err := d.Submit(ctx, selectorNewItem, item); err != nil {
		return "", fmt.Errorf("submit %q: %w", item, err)
	}
	var url string
	err := eventually(ctx, env.wait(), func() error {
		u, err := d.URL(ctx)
		if err != nil {
			return err
		}
		if !listURLPattern.MatchString(u) {
			return fmt.Errorf("url %q does not match %s", u, listURLPattern)
		}
		url = u
		return nil
	})
	return url, err
}

func checkListURL(ctx context.Context, env Env) error {
	return withDriver(ctx, env, func(d Driver) error {
		_, err := startList(ctx, env, d, env.Fixture.Items[0])
		return err
	})
}

// assertNoneOf fails if the page body shows any of items.
func assertNoneOf(ctx context.Context, d Driver, items []string) error {
	body, err := d.Text(ctx, selectorBody)
	if err != nil {
		return err
	}
	for _, item := range items {
		if strings.Contains(body, item) {
			return fmt.Errorf("page shows another user's item %q", item)
		}
	}
	return nil
}

// assertOnlyRows fails unless the list table shows exactly want.
func assertOnlyRows(ctx context.Context, d Driver, want []string) error {
	rows, err := d.Rows(ctx, selectorListTable)
	if err != nil {
		return err
	}
	if len(rows) != len(want) {
		return fmt.Errorf("list shows rows %q, want %q", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			return fmt.Errorf("list shows rows %q, want %q", rows, want)
		}
	}
	return nil
}

func checkIsolation(ctx context.Context, env Env) error {
	// The first user only needs the list; the session ends before the second
	// user arrives.
	var firstURL string
	err := withDriver(ctx, env, func(d Driver) error {
		url, err := startList(ctx, env, d, env.Fixture.Items[0])
		if err != nil {
			return err
		}
		if err := d.Submit(ctx, selectorNewItem, env.Fixture.Items[1]); err != nil {
			return err
		}
		firstURL = url
		return waitForRow(ctx, env, d, "2. "+env.Fixture.Items[1])
	})
	if err != nil {
		return fmt.Errorf("first user: %w", err)
	}

	return withDriver(ctx, env, func(d Driver) error {
		// The landing page carries no user content yet.
		if err := d.Open(ctx, env.homeURL()); err != nil {
			return err
		}
		if err := assertNoneOf(ctx, d, env.Fixture.Items); err != nil {
			return err
		}

		secondURL, err := startList(ctx, env, d, env.Fixture.SecondUserItem)
		if err != nil {
			return err
		}
		if secondURL == firstURL {
			return fmt.Errorf("second user got the first user's list %s", firstURL)
		}
		own := "1. " + env.Fixture.SecondUserItem
		if err := waitForRow(ctx, env, d, own); err != nil {
			return err
		}
		return assertOnlyRows(ctx, d, []string{own})
	})
}
