// Package logx configures uptime-ninja's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - console output readable (short timestamp + short caller)
//   - file output JSON-structured
//   - an optional operator-chat sink (min-level + rate limiting)
package logx
