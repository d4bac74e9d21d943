package logger

import (
	"log/slog"
	"os"
)

// Setup builds the process-wide logger: human-readable text in development,
// JSON elsewhere.
func Setup(env string) *slog.Logger {
	if env == "development" {
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}
	return slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
}

func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}
