package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a human-readable logger at the given level. Errors go to
// stderr, everything below to stdout. An empty or unknown level falls
// back to info.
func New(level string) *zap.Logger {
	return newLogger(level, zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr))
}

func newLogger(level string, out, errOut zapcore.WriteSyncer) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	stdoutLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= lvl && l < zapcore.ErrorLevel
	})
	stderrLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= lvl && l >= zapcore.ErrorLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, out, stdoutLevel),
		zapcore.NewCore(consoleEncoder, errOut, stderrLevel),
	)
	return zap.New(core)
}
