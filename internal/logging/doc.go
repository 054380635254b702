// Package logging builds the structured logger used across curia.
//
// Nothing in this package installs a process-wide logger. New returns a
// *slog.Logger that callers pass down explicitly, so several independent
// pipelines can run in one process (tests do this routinely).
//
// Logs are JSON lines written to a size-rotated file under ~/.curia/logs/
// and, unless disabled, mirrored to stderr. The MCP server mode disables
// stderr because stdio carries the JSON-RPC stream.
package logging
