// Package logging centralizes slog logger construction and context
// propagation for the resilience core. All components log through loggers
// created here so output format and level control stay consistent.
package logging
