package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

func orGlobal(l Logger) Logger {
	if l == nil {
		return GetLogger()
	}
	return l
}

// LogRateLimit logs a rate-limit wait before it starts
func LogRateLimit(l Logger, endpoint string, wait time.Duration, reset time.Time) {
	orGlobal(l).WithFields(map[string]interface{}{
		"endpoint": endpoint,
		"wait":     wait,
		"reset_at": reset,
		"action":   "rate_limited",
	}).Warn("Rate limit reached, waiting for window reset")
}

// LogPage logs one fetched timeline batch
func LogPage(l Logger, userID int64, batch, size int, maxID int64) {
	orGlobal(l).DebugWithFields("Fetched timeline batch", map[string]interface{}{
		"user_id": userID,
		"batch":   batch,
		"size":    size,
		"max_id":  maxID,
	})
}

// LogUserOutcome logs the terminal state reached for one user
func LogUserOutcome(l Logger, userID int64, state string, count int, err error) {
	log := orGlobal(l).WithFields(map[string]interface{}{
		"user_id": userID,
		"state":   state,
		"count":   count,
	})
	if err != nil {
		log.WithError(err).Warn("User collection did not persist")
		return
	}
	log.Info("User collection finished")
}

// LogRunSummary logs the one-line completion summary of a run
func LogRunSummary(l Logger, runID string, elapsed time.Duration, succeeded, failed, collected int) {
	orGlobal(l).InfoWithFields("Collection run complete", map[string]interface{}{
		"run_id":    runID,
		"elapsed":   elapsed,
		"succeeded": succeeded,
		"failed":    failed,
		"collected": collected,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	log := orGlobal(l).WithField("component", component)
	if len(config) > 0 {
		log = log.WithFields(config)
	}
	log.Info("Component started")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
