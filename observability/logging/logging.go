package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options tunes the shared logger. The zero value logs JSON to stdout.
type Options struct {
	// Service and Environment are attached to every log line.
	Service     string
	Environment string
	// FilePath, when set, mirrors log output into a size-rotated file.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

// Setup configures the default slog logger to emit structured JSON and
// returns it. The standard library logger is bridged onto the same handler so
// dependencies keep working.
func Setup(opts Options) *slog.Logger {
	var out io.Writer = os.Stdout
	if strings.TrimSpace(opts.FilePath) != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    maxOrDefault(opts.MaxSizeMB, 100),
			MaxBackups: maxOrDefault(opts.MaxBackups, 3),
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotated)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(opts.Service))}
	if env := strings.TrimSpace(opts.Environment); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func maxOrDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
