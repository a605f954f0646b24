// Package logger builds the zap logger used for diagnostic output.
//
// Diagnostics go to stderr (or a rotating file) so that report output on
// stdout stays machine readable.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	OutputStderr = "stderr"
	OutputFile   = "file"
	OutputBoth   = "both"

	LevelOff = "off"
)

type Config struct {
	Level      string // debug, info, warn, error, off
	Format     string // json, console
	Output     string // stderr, file, both
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	NoColor    bool
}

func DefaultConfig() Config {
	return Config{
		Level:      "warn",
		Format:     "console",
		Output:     OutputStderr,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
	}
}

// New builds a logger from cfg. Level "off" returns a no-op logger.
func New(cfg Config) (*zap.Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg Config, stderr io.Writer) (*zap.Logger, error) {
	if strings.EqualFold(cfg.Level, LevelOff) {
		return zap.NewNop(), nil
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console", "":
		if !cfg.NoColor {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json or console)", cfg.Format)
	}

	var cores []zapcore.Core
	switch cfg.Output {
	case OutputStderr, OutputBoth, "":
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(stderr), level))
	case OutputFile:
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
	if cfg.Output == OutputFile || cfg.Output == OutputBoth {
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log output %q requires a file path", cfg.Output)
		}
		writer := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		}
		// Files never get ANSI colors.
		fileEncoderConfig := encoderConfig
		fileEncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		fileEncoder := zapcore.NewJSONEncoder(fileEncoderConfig)
		if cfg.Format != "json" {
			fileEncoder = zapcore.NewConsoleEncoder(fileEncoderConfig)
		}
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(writer), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// ParseLevel accepts debug, info, warn, error; empty means warn.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning", "":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}
