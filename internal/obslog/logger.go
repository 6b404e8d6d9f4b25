// Package obslog provides the engine's operational logger, distinct from
// the tamper-evident NDJSON audit trail in internal/audit. Grounded on the
// rest of the example pack's choice of go.uber.org/zap for a service's
// structured logging (see _examples/shamank-snet-sdk-go).
package obslog

import "go.uber.org/zap"

// New builds a production zap logger. Callers in short-lived CLI
// invocations should defer Sync() and tolerate its error on platforms
// where stderr doesn't support fsync.
func New() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NewDevelopment builds a human-readable console logger for interactive
// CLI sessions.
func NewDevelopment() *zap.Logger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Noop returns a logger that discards everything, used in tests.
func Noop() *zap.Logger { return zap.NewNop() }
