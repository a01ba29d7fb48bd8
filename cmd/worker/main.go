package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/your-org/facerec/internal/api"
	"github.com/your-org/facerec/internal/api/handlers"
	"github.com/your-org/facerec/internal/appclient"
	"github.com/your-org/facerec/internal/config"
	"github.com/your-org/facerec/internal/ingest"
	"github.com/your-org/facerec/internal/ingest/gocvsrc"
	"github.com/your-org/facerec/internal/matching"
	"github.com/your-org/facerec/internal/observability"
	"github.com/your-org/facerec/internal/pipeline"
	"github.com/your-org/facerec/internal/queue"
	"github.com/your-org/facerec/internal/storage"
	"github.com/your-org/facerec/internal/vision/engine"
	"github.com/your-org/facerec/internal/worker"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting face worker",
		"queue", cfg.Queue.Transport,
		"engine", cfg.Vision.Engine,
		"model", cfg.Vision.Model,
		"upsample", cfg.Vision.UpsampleFactor(),
		"threshold", cfg.Matching.MaxDistance(),
		"cpu_cores", runtime.NumCPU(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Identity store
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("open identity store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Media files
	media, err := storage.NewMediaStore(ctx, cfg.Media)
	if err != nil {
		slog.Error("open media store", "backend", cfg.Media.Backend, "error", err)
		os.Exit(1)
	}

	// Face models
	analyzer, err := engine.Open(cfg.Vision)
	if err != nil {
		slog.Error("load face models", "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()
	slog.Info("face models loaded")

	// Job queue
	jobs, err := queue.Open(ctx, cfg.Queue)
	if err != nil {
		slog.Error("connect to queue", "transport", cfg.Queue.Transport, "error", err)
		os.Exit(1)
	}
	defer jobs.Close()

	matcher := matching.New(store, cfg.Matching.MaxDistance())
	pipe := pipeline.New(analyzer, matcher, store, newDecoder(cfg.Video))
	w := worker.New(jobs, appclient.New(cfg.App), media, pipe, worker.Options{
		PollTimeout:      cfg.Queue.PollTimeout,
		IdlePause:        cfg.Worker.IdlePause,
		DefaultFrameSkip: cfg.Video.DefaultFrameSkip(),
	})

	// Ops server
	srv := &http.Server{
		Addr: cfg.Metrics.Addr,
		Handler: api.NewRouter(api.RouterConfig{
			APIKey: cfg.Metrics.APIKey,
			Store:  store,
			Checks: []handlers.Check{
				{Name: cfg.Database.Driver, Ping: store.Ping},
				{Name: cfg.Queue.Transport, Ping: jobs.Ping},
				{Name: cfg.Media.Backend, Ping: media.Ping},
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("ops server listening", "addr", cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ops server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := jobs.Len(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	slog.Info("waiting for jobs", "key", cfg.Queue.Key, "poll_timeout", cfg.Queue.PollTimeout)
	if err := w.Run(ctx); err != nil {
		slog.Error("worker stopped", "error", err)
	}

	slog.Info("shutting down worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("ops server shutdown", "error", err)
	}
	slog.Info("worker stopped")
}

func newDecoder(cfg config.VideoConfig) ingest.Decoder {
	if cfg.Decoder == "gocv" {
		return gocvsrc.Decoder{}
	}
	return ingest.NewFFmpegDecoder(cfg.FFmpegPath, cfg.FFprobePath)
}
