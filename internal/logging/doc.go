// Package logging assembles structured slog loggers shared across scoreframe
// components.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers that tag log lines with request ids and pipeline
// stages. Console output is colored only when the destination is an
// interactive terminal. A no-op logger is provided for tests and wiring code
// that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
