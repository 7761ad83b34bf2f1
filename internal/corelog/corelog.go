// Package corelog adapts a zap.SugaredLogger to the narrow corectl.Logger
// interface the control core writes through.
package corelog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements corectl.Logger over a zap.SugaredLogger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a production zap logger, switching to debug level when verbose
// is set, matching the CLI's own PersistentPreRunE setup.
func New(verbose bool) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &ZapLogger{sugar: logger.Sugar()}, nil
}

// Wrap adapts an already-built zap.Logger, for callers that construct their
// own zap config (e.g. to add fields or a different encoder).
func Wrap(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: logger.Sugar()}
}

func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

// Sync flushes any buffered log entries, mirroring the CLI's
// PersistentPostRun cleanup. Errors are expected and ignorable on stderr-only
// sinks (e.g. ENOTTY on a non-tty stderr), matching the teacher's `_ =
// logger.Sync()` convention.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
