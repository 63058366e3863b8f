package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BDNK1/apiflow/cli/internal/config"
	"github.com/BDNK1/apiflow/cli/internal/constants"
	"github.com/BDNK1/apiflow/cli/internal/runner"
	"github.com/BDNK1/apiflow/cli/internal/telemetry"
	"github.com/BDNK1/apiflow/plugins/auth"
	httpplugin "github.com/BDNK1/apiflow/plugins/http"
)

// app bundles the collaborators every executing command needs.
type app struct {
	l      *slog.Logger
	cfg    *config.Config
	runner *runner.Runner
	tracer *telemetry.TracerProvider
}

func newApp(ctx context.Context, cfg *config.Config, l *slog.Logger) (*app, error) {
	tp, err := telemetry.NewTracerProvider(ctx, l, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	executor := httpplugin.NewExecutor(l, cfg.HTTP)

	opts := []runner.Option{runner.WithTracer(tp.Tracer(constants.AppName))}
	if len(cfg.Auth.Profiles) > 0 {
		manager, err := auth.NewManager(l, executor.Client(), cfg.Auth.Profiles)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize auth profiles: %w", err)
		}
		opts = append(opts, runner.WithAuthenticator(manager))
	}

	return &app{
		l:      l,
		cfg:    cfg,
		runner: runner.New(l, cfg.Runner, executor, opts...),
		tracer: tp,
	}, nil
}

func (a *app) close() {
	if err := a.tracer.Shutdown(context.Background()); err != nil {
		a.l.Warn("Telemetry shutdown failed", "error", err)
	}
}
