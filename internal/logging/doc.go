// Package logging configures slog for nbsretrieve. Records are JSON, written
// to a size-rotated file under ~/.nbs/logs/ and optionally mirrored to stderr.
// The MCP server logs to the file only, since stdout carries the protocol.
package logging
