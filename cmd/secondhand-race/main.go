package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"secondhand-race/cmd/secondhand-race/commands"
	"secondhand-race/lib/osutil"
	"secondhand-race/lib/serviceutil"
	"secondhand-race/lib/telemetry"
)

func main() {
	ctx, cancel := osutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "secondhand-race")
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		serviceutil.Fatal("failed to set up telemetry", err)
	default:
		telemetry.InstrumentPerfStats(ctx, 15*time.Second)
	}

	code := commands.ExecuteContext(ctx)

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
	stop()
	os.Exit(code)
}
