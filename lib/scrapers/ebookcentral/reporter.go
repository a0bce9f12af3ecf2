package ebookcentral

import (
	"context"
	"log/slog"
)

// DebugLevel classifies messages sent through the debug channel.
type DebugLevel string

const (
	LevelDebug   DebugLevel = "debug"
	LevelInfo    DebugLevel = "info"
	LevelWarning DebugLevel = "warning"
	LevelError   DebugLevel = "error"
)

// DebugFunc is the injectable diagnostic channel. The client behaves
// identically whether or not one is supplied.
type DebugFunc func(level DebugLevel, message string, data map[string]any)

func (c *Client) report(ctx context.Context, level DebugLevel, message string, data map[string]any) {
	args := make([]any, 0, len(data)*2)
	for k, v := range data {
		args = append(args, k, v)
	}
	switch level {
	case LevelDebug:
		slog.DebugContext(ctx, message, args...)
	case LevelWarning:
		slog.WarnContext(ctx, message, args...)
	case LevelError:
		slog.ErrorContext(ctx, message, args...)
	default:
		slog.InfoContext(ctx, message, args...)
	}

	if c.debug != nil {
		c.debug(level, message, data)
	}
}

const bodySnippetLength = 500

// a snippet of an unexpected response body, attached to protocol-shape
// failures for offline diagnosis
func bodySnippet(body string) string {
	if len(body) > bodySnippetLength {
		return body[:bodySnippetLength]
	}
	return body
}
