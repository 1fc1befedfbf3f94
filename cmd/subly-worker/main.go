package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"subly/internal/amqp"
	"subly/internal/backend"
	"subly/internal/cli"
	"subly/internal/config"
	"subly/internal/log"
	"subly/internal/metrics"
	"subly/internal/worker"
)

func main() {
	cfg, logger := cli.MustLoad(log.ComponentWorker)
	logger.Info("Starting subly-worker")

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	if cfg.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required for the mirror worker")
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	bc, err := cli.BackendConfig(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	store, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog(), m).CreateRemote(ctx, bc)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPMirrorQueue)
	if err != nil {
		return fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	defer client.Close()

	mirrorWorker := worker.NewMirrorWorker(store, m)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	probe := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Consuming mirror writes",
			"queue", client.QueueName(),
			"remote", cfg.RemoteBackend)
		return client.ConsumeMirror(gctx, mirrorWorker.HandleMirrorMessage)
	})

	g.Go(func() error {
		if err := probe.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return probe.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
