// Package log provides pqueue's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally it is backed by the standard
// library slog via a bridge handler that feeds a formatter and a set of
// outputs, so output stays consistent whether a record came from our facade
// or from a library writing through slog or the std log package.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("registry"), log.Str("queue", "jobs"))
//	l.Info("queue opened", log.Uint64("last_id", 42))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config: text or JSON
// formatting, console and rotating file outputs (lumberjack), key redaction
// and per-message sampling.
//
// # Interop
//
// RedirectStdLog routes the standard library logger (used by Pebble's
// default event listener) through a Logger; ToStdLogger returns a *log.Logger
// for libraries that want one.
package log
