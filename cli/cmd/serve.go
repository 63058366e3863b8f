package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/BDNK1/apiflow/cli/internal/server"
)

var (
	serveAddr    string
	serveMaxRuns int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve workflow runs over HTTP",
	Long: `Serve starts an HTTP service that runs posted workflow documents and keeps
their results in memory.

Endpoints:
  POST /runs              run a workflow (YAML or JSON body, optional ?start=<id>&name=<name>)
  GET  /runs              list stored runs
  GET  /runs/:id          status and step results
  GET  /runs/:id/report   report (?format=markdown|json|junit)
  GET  /healthz
`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().IntVar(&serveMaxRuns, "max-runs", server.DefaultMaxRuns, "finished runs kept in memory")
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	l := newLogger(cfg.Log, cmd.ErrOrStderr())

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer a.close()

	srv := server.New(l, a.runner, server.NewRegistry(serveMaxRuns))
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
