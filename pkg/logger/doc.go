// Package logger provides the structured logging interface used across the
// collector.
//
// It wraps zerolog with a small Logger interface so components can receive a
// logger by injection and tests can swap in NewTestLogger or NewNopLogger.
//
// Basic Usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//
//	logger.WithField("user_id", id).Info("User collection finished")
//	logger.WithError(err).Error("Failed to open store")
//
// Domain helpers (LogPage, LogRateLimit, LogUserOutcome, LogRunSummary) keep
// field names consistent between the client, the paginator and the collector.
package logger
