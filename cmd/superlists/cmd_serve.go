package main

import (
	"os"
	"os/signal"
	"syscall"

	"superlists/internal/lists"
	"superlists/internal/logging"
	"superlists/internal/store"
	"superlists/internal/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	Long: `Serves the to-do list pages until interrupted.

Routes:
  GET  /                      landing page
  POST /lists/new             start a list
  GET  /lists/<id>/           show a list
  POST /lists/<id>/add_item   add to a list
  GET  /healthz               database check`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	st, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := newWebServer(st, cfg.Web.TemplatesDir)
	if err != nil {
		return err
	}

	logging.Boot("starting server",
		zap.String("addr", addr),
		zap.String("db", st.Path()),
		zap.String("driver", st.Driver()),
		zap.Bool("templates_reload", cfg.Web.TemplatesDir != ""))
	warnMemoryStore(st.Path())

	err = srv.Run(ctx, addr, web.Timeouts{
		Read:     cfg.GetReadTimeout(),
		Write:    cfg.GetWriteTimeout(),
		Shutdown: cfg.GetShutdownTimeout(),
	})
	logging.Boot("server stopped")
	return err
}

// warnMemoryStore flags a server whose lists vanish when it exits.
func warnMemoryStore(path string) {
	if path == store.MemoryPath {
		logging.BootWarn("serving from an in-memory database, lists are lost on exit",
			zap.String("db", path))
	}
}

func newWebServer(st *store.Store, templatesDir string) (*web.Server, error) {
	renderer, err := web.NewRenderer(templatesDir)
	if err != nil {
		return nil, err
	}
	return web.NewServer(lists.NewService(st), renderer, st), nil
}

