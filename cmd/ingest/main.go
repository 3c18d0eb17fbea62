package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"newsbuzz/internal/app"
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

	report, err := a.Scheduler.RunOnce(ctx)
	if report != nil {
		fmt.Println(report.Summary())
		for url, msg := range report.Errors {
			log.Warn("source failed", "url", url, "error", msg)
		}
	}
	_ = a.Close()
	if err != nil {
		log.Error("ingestion aborted", "error", err)
		os.Exit(1)
	}
}
