package logger

import "go.uber.org/zap"

// ZapLogger adapts a zap logger to the Logger interface.
type ZapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps l. A nil l discards everything.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{s: l.Sugar()}
}

// NewConsoleLogger builds a zap logger for the binaries: JSON output for
// log collectors when json is set, human readable output otherwise.
func NewConsoleLogger(json, debug bool) (*ZapLogger, error) {
	var cfg zap.Config
	if json {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(l), nil
}

func (z *ZapLogger) Info(format string, args ...interface{}) {
	z.s.Infof(format, args...)
}

func (z *ZapLogger) Warning(format string, args ...interface{}) {
	z.s.Warnf(format, args...)
}

func (z *ZapLogger) Error(format string, args ...interface{}) {
	z.s.Errorf(format, args...)
}

// Close flushes buffered entries. Sync errors on terminals are ignored:
// stderr cannot be fsynced there.
func (z *ZapLogger) Close() error {
	_ = z.s.Sync()
	return nil
}

var _ Logger = (*ZapLogger)(nil)
