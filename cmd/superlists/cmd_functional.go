package main

import (
	"context"
	"fmt"
	"net"

	"superlists/internal/functional"
	"superlists/internal/store"
	"superlists/internal/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	functionalBaseURL     string
	functionalDriver      string
	functionalFixture     string
	functionalEmbedded    bool
	functionalParallel    int
	functionalScenarios   []string
	functionalScreenshots string
)

var functionalCmd = &cobra.Command{
	Use:   "functional",
	Short: "Run the end-to-end acceptance suite",
	Long: `Drives the app the way a user would and checks what the pages show.

Scenarios:
  title          landing page title contains "To do list"
  header         the h1 mentions "Lists"
  placeholder    the new item input says "Write thing to do"
  numbered_rows  submitted items appear as "1. ...", "2. ..." in order
  list_url       the first submission lands on /lists/<id>/
  isolation      a second user sees none of the first user's items

The browser driver needs Chrome; the html driver only needs HTTP.
With --embedded the suite runs against an in-process server and an in-memory database.`,
	RunE: runFunctional,
}

func init() {
	functionalCmd.Flags().StringVar(&functionalBaseURL, "base-url", "", "App URL (overrides functional.base_url)")
	functionalCmd.Flags().StringVar(&functionalDriver, "driver", "", "browser or html (overrides functional.driver)")
	functionalCmd.Flags().StringVar(&functionalFixture, "fixture", "", "JSON fixture with sample items")
	functionalCmd.Flags().BoolVar(&functionalEmbedded, "embedded", false, "Start an in-process server with an in-memory database")
	functionalCmd.Flags().IntVar(&functionalParallel, "parallel", 0, "Scenarios run at once (overrides functional.parallel)")
	functionalCmd.Flags().StringSliceVar(&functionalScenarios, "scenario", nil, "Run only the named scenarios")
	functionalCmd.Flags().StringVar(&functionalScreenshots, "screenshots", "", "Directory for PNGs of failing pages (browser driver)")
}

func runFunctional(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	fc := cfg.Functional
	if functionalBaseURL != "" {
		fc.BaseURL = functionalBaseURL
	}
	if functionalDriver != "" {
		fc.Driver = functionalDriver
	}
	if functionalFixture != "" {
		fc.Fixture = functionalFixture
	}
	if functionalParallel > 0 {
		fc.Parallel = functionalParallel
	}

	scenarios, err := functional.Select(functionalScenarios)
	if err != nil {
		return err
	}
	fixture, err := functional.LoadFixture(fc.Fixture)
	if err != nil {
		return err
	}

	if functionalEmbedded {
		baseURL, stop, err := startEmbedded(ctx)
		if err != nil {
			return err
		}
		defer stop()
		fc.BaseURL = baseURL
	}

	factory, err := functional.NewFactory(functional.FactoryOptions{
		Driver: fc.Driver,
		Browser: functional.BrowserOptions{
			Bin:               cfg.Browser.Bin,
			Flags:             cfg.Browser.Flags,
			Headless:          cfg.Browser.Headless,
			ViewportWidth:     cfg.Browser.ViewportWidth,
			ViewportHeight:    cfg.Browser.ViewportHeight,
			NavigationTimeout: cfg.GetNavigationTimeout(),
		},
	})
	if err != nil {
		return err
	}
	defer factory.Close(context.WithoutCancel(ctx))

	runner := functional.Runner{
		Env: functional.Env{
			BaseURL: fc.BaseURL,
			Factory: factory,
			Fixture: fixture,
			Wait:    cfg.GetNavigationTimeout(),

			ScreenshotDir: functionalScreenshots,
		},
		Driver:   fc.Driver,
		Parallel: fc.Parallel,
		Timeout:  cfg.GetScenarioTimeout(),
	}

	logger.Info("running functional tests",
		zap.String("base_url", fc.BaseURL),
		zap.String("driver", fc.Driver),
		zap.Int("scenarios", len(scenarios)))

	summary, err := runner.Run(ctx, scenarios)
	if werr := functional.WriteReport(cmd.OutOrStdout(), summary); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return err
	}
	if n := summary.Failed(); n > 0 {
		return fmt.Errorf("%d of %d scenarios failed", n, len(summary.Results))
	}
	return nil
}

// startEmbedded serves the app from an in-memory database on a loopback port.
func startEmbedded(ctx context.Context) (string, func(), error) {
	st, err := store.Open(ctx, cfg.Storage.Driver, store.MemoryPath)
	if err != nil {
		return "", nil, err
	}
	srv, err := newWebServer(st, "")
	if err != nil {
		st.Close()
		return "", nil, err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		st.Close()
		return "", nil, fmt.Errorf("listen: %w", err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(srvCtx, ln, web.Timeouts{
			Read:     cfg.GetReadTimeout(),
			Write:    cfg.GetWriteTimeout(),
			Shutdown: cfg.GetShutdownTimeout(),
		})
	}()

	stop := func() {
		cancel()
		if err := <-done; err != nil {
			logger.Warn("embedded server stopped with error", zap.Error(err))
		}
		st.Close()
	}
	return "http://" + ln.Addr().String(), stop, nil
}
