package commands

import (
	"context"
	"forummigrate/internal/components/telemetry"
	"forummigrate/lib/serviceutil"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

var otel telemetry.Otel

func initSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
}

func initTelemetry(ctx context.Context, verbose bool) {
	initSlog(verbose)

	var err error
	otel, err = telemetry.SetupFromEnv(ctx, "forummigrate")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	telemetry.InstrumentPerfStats(ctx, telemetry.SlogAPI{})
}

func shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := otel.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
}
