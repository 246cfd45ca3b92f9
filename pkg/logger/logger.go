package logger

import (
	"io"
	"os"

	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

var Log = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Init sends JSON logs to stdout and to a size-rotated file.
func Init(logFilePath string, level slog.Level) {
	rotator := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10, // MB
		MaxBackups: 0,  // only one file
		MaxAge:     0,  // ignore age
		Compress:   false,
	}
	InitWriter(io.MultiWriter(os.Stdout, rotator), level)
}

// InitWriter is Init without rotation. Tests pass io.Discard.
func InitWriter(w io.Writer, level slog.Level) {
	Log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(Log)
}

// ParseLevel maps "debug", "warn", "error" to slog levels; anything else is info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
