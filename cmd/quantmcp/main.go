package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantmcp/quantmcp/internal/config"
	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/db"
	httpsvr "github.com/quantmcp/quantmcp/internal/http"
	mcpsvr "github.com/quantmcp/quantmcp/internal/mcp"
	"github.com/quantmcp/quantmcp/internal/qc"
	"github.com/quantmcp/quantmcp/internal/telemetry"
	"github.com/quantmcp/quantmcp/internal/tool"
	"github.com/quantmcp/quantmcp/internal/tools"
)

var (
	version   = "dev"
	gitCommit = ""
	buildTime = ""
)

const serverName = "quantmcp"

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// stdout carries the protocol on the stdio transport, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("effective config", "config", cfg, "version", version)

	var (
		opts    []tool.Option
		journal httpsvr.ToolCallStore
	)
	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
		opts = append(opts, tool.WithRecorder(db.NewJournal(database)))
		journal = database
		logger.Info("tool call journal enabled")
	}

	metrics := telemetry.Default()
	rt, err := newRuntime(cfg, logger, metrics, os.Stderr, opts...)
	if err != nil {
		return err
	}
	logger.Info("tools registered", "count", len(rt.Tools()), "safe", rt.Registry().SafeNames())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcpServer := mcpsvr.NewServer(cfg.TCPListen, rt, mcpsvr.Info{Name: serverName, Version: version}, logger)

	g, gctx := errgroup.WithContext(ctx)
	var shutdowns []func(context.Context) error

	switch cfg.Transport {
	case config.TransportStdio:
		// A read on stdin cannot be interrupted, so the reader is left
		// behind on shutdown and the process exits around it.
		done := make(chan error, 1)
		go func() {
			logger.Info("mcp server starting", "transport", config.TransportStdio)
			done <- mcpServer.ServeStream(gctx, os.Stdin, os.Stdout)
		}()
		g.Go(func() error {
			select {
			case err := <-done:
				stop()
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			case <-gctx.Done():
				return nil
			}
		})

	case config.TransportTCP:
		g.Go(mcpServer.ListenAndServe)
		shutdowns = append(shutdowns, mcpServer.Shutdown)

	case config.TransportHTTP:
		var auth *httpsvr.Authenticator
		if cfg.AuthSecret != "" {
			auth = httpsvr.NewAuthenticator(cfg.AuthSecret, httpsvr.DefaultIssuer)
		}
		httpServer := httpsvr.NewServer(cfg.HTTPListen, mcpServer, httpsvr.Options{
			ToolCalls: journal,
			Auth:      auth,
			Metrics:   metrics.Handler(),
			Build:     httpsvr.BuildInfo{Version: version, GitCommit: gitCommit, BuildTime: buildTime},
		}, logger)
		g.Go(httpServer.ListenAndServe)
		shutdowns = append(shutdowns, httpServer.Shutdown)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		var errs []error
		for _, shutdown := range shutdowns {
			errs = append(errs, shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// newRuntime registers every platform tool behind the configured policy.
// Call records go to callLog only while MCP_STRUCTURED_LOGS is "1".
func newRuntime(cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics, callLog io.Writer, opts ...tool.Option) (*tool.Runtime, error) {
	client := qc.NewClient(cfg.UserID, cfg.APIToken,
		qc.WithBaseURL(cfg.APIURL),
		qc.WithTimeout(cfg.APITimeout),
		qc.WithMaxAttempts(cfg.APIMaxAttempts),
		qc.WithLogger(logger),
		qc.WithMetrics(metrics),
	)

	opts = append([]tool.Option{
		tool.WithPolicy(core.NewPolicy(cfg.ToolAllowlist)),
		tool.WithObserver(metrics),
		tool.WithCallLogger(tool.NewCallLogger(callLog, tool.StructuredLogsEnabled)),
	}, opts...)

	rt := tool.New(logger, opts...)
	if err := tools.Register(rt, tools.Deps{
		API:       client,
		Releases:  qc.NewReleaseFeed(),
		AgentName: cfg.AgentName,
		Version:   version,
		Logger:    logger,
	}); err != nil {
		return nil, err
	}
	rt.Init()
	return rt, nil
}
