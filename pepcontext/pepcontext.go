// Package pepcontext holds the process-wide singletons every PEP party
// needs but none of them owns: the CSPRNG, the structured logger, and the
// init/shutdown lifecycle that wires them up.
package pepcontext

import (
	"crypto/rand"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
)

// Config controls process-wide logging. LogPath empty means stderr only.
type Config struct {
	LogPath    string
	MaxSizeMB  int
	MaxBackups int
	Debug      bool
}

// Init wires up the process-wide logger. Callers must call Shutdown before
// exit to flush buffered log entries.
func Init(cfg Config) error {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	sinks := []zapcore.WriteSyncer{zapcore.Lock(zapcore.AddSync(os.Stderr))}
	if cfg.LogPath != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    nonZero(cfg.MaxSizeMB, 100),
			MaxBackups: nonZero(cfg.MaxBackups, 5),
			Compress:   true,
		}))
	}
	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)

	mu.Lock()
	logger = zap.New(core)
	mu.Unlock()
	return nil
}

func nonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// Shutdown flushes the process-wide logger. Safe to call even if Init was
// never called.
func Shutdown() {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}

// Log returns the process-wide logger, falling back to a no-op logger if
// Init was never called (convenient for tests).
func Log() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Rand returns the process CSPRNG. It is crypto/rand directly: there is no
// need for a seedable or mockable source here.
func Rand() io.Reader {
	return rand.Reader
}
