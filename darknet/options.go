package darknet

// Option configures an import.
type Option func(*importConfig)

type importConfig struct {
	logger   Logger
	progress func(read, total int64)
}

func newImportConfig() *importConfig {
	return &importConfig{logger: nopLogger{}}
}

// WithLogger sets a logger for per-layer import diagnostics.
// If not set, logging is disabled.
func WithLogger(logger Logger) Option {
	return func(c *importConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProgress sets a callback invoked as weight tensors are read, with
// the number of bytes consumed so far and the total weights-file size.
// The callback runs on the importing goroutine.
func WithProgress(fn func(read, total int64)) Option {
	return func(c *importConfig) {
		c.progress = fn
	}
}

// Logger is the interface for diagnostic logging.
// Compatible with slog, zap, logrus, and other structured loggers.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
