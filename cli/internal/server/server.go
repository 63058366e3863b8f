// Package server exposes workflow runs over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BDNK1/apiflow/cli/internal/report"
	"github.com/BDNK1/apiflow/workflow"
)

// Runner executes one parsed workflow.
type Runner interface {
	Run(ctx context.Context, wf *workflow.Workflow, start ...string) (*workflow.Engine, error)
}

// Server runs workflows posted to it and keeps their results in memory.
type Server struct {
	l        *slog.Logger
	runner   Runner
	registry *Registry
	engine   *gin.Engine
}

func New(l *slog.Logger, runner Runner, registry *Registry) *Server {
	if l == nil {
		l = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry(DefaultMaxRuns)
	}

	g := gin.New()
	g.Use(gin.Recovery(), requestLogger(l))

	s := &Server{l: l, runner: runner, registry: registry, engine: g}
	g.GET("/healthz", s.health)
	g.POST("/runs", s.createRun)
	g.GET("/runs", s.listRuns)
	g.GET("/runs/:id", s.getRun)
	g.GET("/runs/:id/report", s.getReport)
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.l.Info("Run service listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.l.Info("Shutting down run service")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createRun(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Failed to read request body"})
		return
	}

	format := workflow.FormatYAML
	if strings.Contains(c.ContentType(), "json") {
		format = workflow.FormatJSON
	}

	wf, err := workflow.Parse(body, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	name := c.Query("name")
	engine, err := s.runner.Run(c.Request.Context(), wf, c.QueryArray("start")...)
	if engine == nil || isDefinitionError(err) {
		s.l.Warn("Workflow rejected", "name", name, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	s.registry.Add(name, engine, err)

	resp := gin.H{"id": engine.RunID(), "status": engine.Status()}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) listRuns(c *gin.Context) {
	entries := s.registry.List()
	runs := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		runs = append(runs, gin.H{
			"id":         e.Engine.RunID(),
			"name":       e.Name,
			"created_at": e.CreatedAt,
			"status":     e.Engine.Status(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	entry, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "run not found"})
		return
	}
	c.JSON(http.StatusOK, report.Summarize(entry.Name, entry.Engine))
}

var reportContentTypes = map[string]string{
	report.FormatMarkdown: "text/markdown; charset=utf-8",
	report.FormatJSON:     "application/json; charset=utf-8",
	report.FormatJUnit:    "application/xml; charset=utf-8",
}

func (s *Server) getReport(c *gin.Context) {
	entry, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "run not found"})
		return
	}

	format := c.DefaultQuery("format", report.FormatMarkdown)
	contentType, supported := reportContentTypes[format]
	if !supported {
		c.JSON(http.StatusBadRequest, gin.H{"message": "unsupported report format: " + format})
		return
	}

	data, err := report.Render(format, entry.Name, entry.Engine)
	if err != nil {
		s.l.Error("Report rendering failed", "run_id", entry.Engine.RunID(), "format", format, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// isDefinitionError reports errors caused by the workflow itself rather than the run.
func isDefinitionError(err error) bool {
	var cfgErr *workflow.ConfigError
	return errors.As(err, &cfgErr) ||
		errors.Is(err, workflow.ErrCyclicDependency) ||
		errors.Is(err, workflow.ErrUnknownStep)
}

func requestLogger(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
