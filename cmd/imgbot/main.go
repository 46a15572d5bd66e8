package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Reaxt/imgbot/internal/bot"
	"github.com/Reaxt/imgbot/internal/config"
	"github.com/Reaxt/imgbot/internal/ops"
	"github.com/Reaxt/imgbot/internal/pipeline"
	"github.com/Reaxt/imgbot/internal/telemetry"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[imgbot] ", log.LstdFlags|log.Lmsgprefix)

	if cfg.Bot.Token == "" {
		logger.Fatal("IMGBOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:    "imgbot",
		ServiceVersion: version,
		Exporter:       cfg.Trace.Exporter,
		OTLPEndpoint:   cfg.Trace.OTLPEndpoint,
		OTLPInsecure:   cfg.Trace.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}

	if err := pipeline.Startup(); err != nil {
		logger.Fatalf("image runtime startup failed: %v", err)
	}
	defer pipeline.Shutdown()

	runtime, err := bot.NewRuntime(logger, cfg.Bot, cfg.Fetch)
	if err != nil {
		logger.Fatalf("bot setup failed: %v", err)
	}

	opsServer := &http.Server{
		Addr:    cfg.Ops.Addr,
		Handler: ops.NewServer(runtime.MetricsHandler()).Handler(),
	}
	go func() {
		logger.Printf("ops server listening addr=%s", cfg.Ops.Addr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("ops server failed: %v", err)
		}
	}()

	if err := runtime.Run(ctx); err != nil {
		logger.Fatalf("bot stopped: %v", err)
	}

	logger.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("ops server shutdown failed: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}
