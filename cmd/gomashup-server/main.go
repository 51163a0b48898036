package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appcfg "github.com/jo-hoe/gomashup/internal/config"
	"github.com/jo-hoe/gomashup/internal/delivery"
	"github.com/jo-hoe/gomashup/internal/driver"
	"github.com/jo-hoe/gomashup/internal/jobs"
	"github.com/jo-hoe/gomashup/internal/mashup"
	"github.com/jo-hoe/gomashup/internal/metrics"
	"github.com/jo-hoe/gomashup/internal/processor"
	"github.com/jo-hoe/gomashup/internal/server"
)

func main() {
	// Load config
	cfg, err := appcfg.Load("")
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	// Logger
	level, _ := appcfg.ParseLogLevel(cfg.Server.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Mail is the only delivery channel for web jobs.
	if err := cfg.Mail.Validate(); err != nil {
		logger.Error("mail config", "err", err)
		os.Exit(1)
	}
	mailer, err := delivery.NewMailDeliverer(delivery.NewSMTPSender(cfg.Mail), cfg.Mail, cfg.Output.ArchiveExt)
	if err != nil {
		logger.Error("mail templates", "err", err)
		os.Exit(1)
	}

	m := metrics.New()

	// Worker and queue
	runner := mashup.NewRunner(logger, cfg, m)
	worker := processor.New(logger, runner, mailer)
	queue := jobs.NewQueue(logger, cfg.Server.QueueCapacity, cfg.Server.WorkerCount)
	m.RegisterQueueDepth(queue.Len)

	// Workers run detached from the signal context so Shutdown can give
	// running jobs the grace period before cancelling them.
	if err := queue.Start(context.Background(), worker); err != nil {
		logger.Error("start queue", "err", err)
		os.Exit(1)
	}

	rootCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// HTTP server
	svc := &server.Service{
		Log:     logger,
		Cfg:     cfg,
		Driver:  &driver.Async{Rules: jobs.WebRules(cfg), Queue: queue, Metrics: m},
		Limiter: server.NewLimiter(cfg.Server.SubmitRate, cfg.Server.SubmitBurst),
		Metrics: m,
	}
	httpSrv := server.NewHTTPServer(svc)

	// Run server in background
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "address", cfg.Server.Addr, "workers", cfg.Server.WorkerCount, "queue", cfg.Server.QueueCapacity)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "err", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	// Stop workers; queued jobs are dropped, running ones get the grace period.
	queue.Shutdown(cfg.Server.ShutdownGrace)
	logger.Info("server stopped")
}
