// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a sane console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.),
//   - optional rotating file output for long-running daemons.
//
// All commands accept a context and extract the logger from it, enabling
// scoped, structured logging throughout the codebase.
package logger
