// Package logging provides file-based structured logging for symdex.
// Logs are written as JSON lines to a size-rotated file under the data
// directory, optionally mirrored to stderr.
//
// In serve mode (MCP over stdio) the stderr mirror is disabled so the
// protocol stream stays clean.
package logging
