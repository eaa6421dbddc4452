// Package logger wraps zap with:
//   - a global sugared logger writing console lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level configuration and parsing utilities,
//   - leveled helpers (Info, InfoKV, WarnKV, ErrorKV, etc.).
//
// Stdout is left to command output such as a manifest printed by the packager.
// Services take the logger from the context, so request and component scoped
// fields follow the call chain.
package logger
