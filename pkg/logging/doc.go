// Package logging provides the structured logging used across rehearse.
//
// It is a thin layer over the standard slog package that tags every entry
// with a subsystem name ("Queue", "Correlation", "Runner", ...) so output from
// concurrently running test branches can still be told apart.
//
// # Log Levels
//   - **Debug**: polling attempts, selector matches, variable changes
//   - **Info**: action execution and test case lifecycle
//   - **Warn**: recovered problems such as failed async branches
//   - **Error**: failures that end a test case
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//	logging.Info("Runner", "Starting test case %s", name)
//	logging.Error("Async", err, "Async branch %s failed", name)
//
// Sinks registered with AddSink receive a copy of every enabled entry; the
// test runner uses this to attach log output to individual results.
package logging
