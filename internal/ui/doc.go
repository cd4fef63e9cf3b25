// Package ui provides helpers for formatting human-readable console output.
//
// The helpers translate command lifecycle events into concise messages so that
// subprocess feedback remains actionable for CLI users while detailed
// telemetry continues to flow through structured loggers.
package ui
