package mylog

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/habiliai/agentmesh/config"
	"github.com/jcooky/go-din"
	"github.com/lmittmann/tint"
)

type Logger = slog.Logger

func ToLogLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func NewLogger(logLevel string, logHandler string) *Logger {
	return NewLoggerWithWriter(logLevel, logHandler, os.Stderr)
}

func NewLoggerWithWriter(logLevel string, logHandler string, w io.Writer) *Logger {
	slogLevel := ToLogLevel(logLevel)

	var handler slog.Handler
	switch logHandler {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: true,
			Level:     slogLevel,
		})
	default:
		handler = newHandler(slogLevel, w)
	}

	return slog.New(handler)
}

func newHandler(level slog.Level, w io.Writer) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		AddSource:  level == slog.LevelDebug,
		Level:      level,
		TimeFormat: time.DateTime,
	})
}

// Err renders err with its stack trace when one was recorded.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return tint.Err(err)
}

// Discard is a logger that drops every record.
func Discard() *Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func init() {
	din.RegisterT(func(c *din.Container) (*Logger, error) {
		conf, err := din.GetT[*config.MeshConfig](c)
		if err != nil {
			return nil, err
		}

		return NewLogger(conf.LogLevel, conf.LogHandler), nil
	})
}
