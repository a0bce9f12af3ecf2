package main

import (
	"log/slog"
	"os"
	"time"

	"libassist-backend/cmd/libassist-cli/cmd"
	"libassist-backend/lib/serviceutil"

	"github.com/lmittmann/tint"
)

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	ctx := serviceutil.SignalContext()
	cmd.Execute(ctx)
}
