// Package logging provides structured JSON logging with size-based
// file rotation for the onboardqa service. All components log through
// slog with snake_case event names; Setup wires a rotating file writer
// optionally mirrored to stderr.
package logging
