package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gwlsn/scenefinder"
	"github.com/gwlsn/scenefinder/internal/api"
	"github.com/gwlsn/scenefinder/internal/artifacts"
	"github.com/gwlsn/scenefinder/internal/asr"
	"github.com/gwlsn/scenefinder/internal/clips"
	"github.com/gwlsn/scenefinder/internal/config"
	"github.com/gwlsn/scenefinder/internal/embed"
	"github.com/gwlsn/scenefinder/internal/jobs"
	"github.com/gwlsn/scenefinder/internal/logger"
	"github.com/gwlsn/scenefinder/internal/media"
	"github.com/gwlsn/scenefinder/internal/search"
	"github.com/gwlsn/scenefinder/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	port := flag.Int("port", 8080, "HTTP listen port")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("scenefinder", scenefinder.Version)
		return
	}

	if env := os.Getenv("CONFIG_PATH"); env != "" {
		*configPath = env
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if env := os.Getenv("DATA_PATH"); env != "" {
		cfg.DataPath = env
	}
	if env := os.Getenv("EMBED_SERVER_URL"); env != "" {
		cfg.EmbedServerURL = env
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting scenefinder", "version", scenefinder.Version, "data_path", cfg.DataPath)

	layout := artifacts.NewLayout(cfg.DataPath)
	if err := layout.EnsureDirs(); err != nil {
		logger.Error("Failed to create data directories", "error", err)
		os.Exit(1)
	}

	jobStore, err := store.InitStore(cfg.DataPath)
	if err != nil {
		logger.Error("Failed to open job store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	// Pipelines don't survive restarts; anything mid-flight is now dead.
	if n, err := jobStore.ResetStuckJobs(); err != nil {
		logger.Error("Failed to reset stuck jobs", "error", err)
		os.Exit(1)
	} else if n > 0 {
		logger.Warn("Marked interrupted jobs as failed", "count", n)
	}

	ffmpeg := media.New(cfg.FFmpegPath, cfg.FFprobePath)
	transcriber := asr.NewWhisper(os.Getenv("OPENAI_API_KEY"), cfg.OpenAIBaseURL)
	embedder := embed.NewClipClient(cfg.EmbedServerURL)

	runner := jobs.NewRunner(jobStore, layout, ffmpeg, transcriber, embedder, jobs.Options{
		SampleIntervalSec: cfg.SampleIntervalSec,
		FrameWidth:        cfg.FrameWidth,
		EmbedBatchSize:    cfg.EmbedBatchSize,
	})

	searchSvc := search.NewService(jobStore, layout, embedder)
	clipCache := clips.NewCache(layout, ffmpeg)
	handler := api.NewHandler(jobStore, runner, layout, searchSvc, clipCache, cfg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: api.NewRouter(handler),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	// Cancel in-flight pipelines and wait for their failure rows to land.
	runner.Stop()
	logger.Info("Stopped")
}
