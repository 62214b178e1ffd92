// Package logging provides structured logging for PMFlow Core.
//
// It wraps log/slog so every component logs through the same handler with
// the same default fields (service, version). JSON is the production
// format; text is available for local development.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
package logging
