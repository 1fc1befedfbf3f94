package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"subly/internal/cli"
	"subly/internal/config"
	"subly/internal/log"
	"subly/internal/metrics"
	"subly/internal/services"
)

func main() {
	once := flag.Bool("once", false, "run one reminder pass and exit")
	flag.Parse()

	cfg, logger := cli.MustLoad(log.ComponentReminder)
	logger.Info("Starting reminder-worker", "once", *once)

	if err := run(cfg, logger, *once); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Reminder worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Reminder worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger, once bool) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	app, err := cli.NewApp(ctx, cfg, logger, metrics.New())
	if err != nil {
		return err
	}
	defer app.Close()

	sched, err := app.NewScheduler()
	if err != nil {
		return err
	}

	if once {
		res, err := sched.RunWithRetry(ctx, services.SlotManual)
		if err != nil {
			return err
		}
		logger.Info("Reminder pass complete",
			"due", res.Due,
			"delivered", res.Delivered,
			"failed", res.Failed,
			"disabled", res.Disabled)
		return nil
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	for _, slot := range []string{services.SlotMorning, services.SlotEvening} {
		if next, ok := sched.Next(slot); ok {
			logger.Info("Reminder scheduled", log.FieldSlot, slot, "next", next.Format(time.RFC3339))
		}
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return sched.Stop(stopCtx)
}
