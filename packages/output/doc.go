// Package output renders responses, extracted values and stored sessions.
//
// Supported output formats:
//   - Console: human-readable colored terminal output
//   - JSON: machine-readable JSON output
//
// Both formatters implement Formatter. The JSON formatter accumulates
// everything and writes a single document on Flush.
package output
