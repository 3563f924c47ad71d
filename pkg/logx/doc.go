// Package logx configures the bot's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured and rotated (lumberjack)
//   - A critical level that is recorded without exiting the process
package logx
