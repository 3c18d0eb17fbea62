package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"newsbuzz/internal/api"
	"newsbuzz/internal/app"
	"newsbuzz/internal/bot"
	"newsbuzz/internal/config"
)

func main() {
	cfg, err := config.Load(os.Args[1:]...)
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := config.NewLogger(os.Stderr, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, &http.Client{}, log)
	if err != nil {
		log.Error("start pipeline", "error", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(a.Scheduler, a.Store, log.With("component", "api")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.TelegramBotToken != "" {
		b, err := bot.New(cfg.TelegramBotToken, a.Scheduler, a.Store, cfg, log.With("component", "bot"))
		if err != nil {
			log.Error("create bot", "error", err)
			os.Exit(1)
		}
		a.Scheduler.SetNotifier(b)
		g.Go(func() error {
			b.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.Scheduler.Run(ctx, cfg.Schedule)
	})

	log.Info("newsbuzz started", "sources", len(a.Sources), "schedule", cfg.Schedule)

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
