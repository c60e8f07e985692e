// Package logging builds the zap logger shared by every component.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"virtnet/internal/config"
)

// Logger bundles the root logger with its adjustable level
type Logger struct {
	*zap.Logger
	Level zap.AtomicLevel
}

// New builds a logger writing to stdout and, when cfg.File is set, to a
// rotating JSON file.
func New(cfg config.LogConfig) *Logger {
	return NewWithWriter(cfg, zapcore.Lock(os.Stdout))
}

// NewWithWriter is New with an explicit console destination
func NewWithWriter(cfg config.LogConfig, console io.Writer) *Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(cfg.Format), zapcore.AddSync(console), level),
	}

	if cfg.File != "" {
		// file output is always JSON
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoder("json"), fileWriter, level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).Named("virtnet")
	return &Logger{Logger: logger, Level: level}
}

// Install makes l the zap global and routes the standard library logger
// through it. The returned func restores the previous state.
func (l *Logger) Install() func() {
	undoGlobals := zap.ReplaceGlobals(l.Logger)
	undoStd := zap.RedirectStdLog(l.Logger)
	return func() {
		undoStd()
		undoGlobals()
	}
}

// SetLevel changes the level at runtime. Unknown names are ignored and
// reported as false.
func (l *Logger) SetLevel(name string) bool {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return false
	}
	if l.Level.Level() != lvl {
		l.Level.SetLevel(lvl)
		l.Info("log level changed", zap.Stringer("level", lvl))
	}
	return true
}

func encoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encoderConfig.TimeKey = "time"

	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}
