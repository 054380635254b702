package errors

import (
	"fmt"
	"log/slog"
	"strings"
)

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ce, ok := As(err)
	if !ok {
		return fmt.Sprintf("Error: %s\n", err.Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", ce.Message))
	if ce.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ce.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ce.Code))
	return sb.String()
}

// LogAttrs returns slog attributes describing err.
// Plain errors yield a single "error" attribute.
func LogAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}

	ce, ok := As(err)
	if !ok {
		return []slog.Attr{slog.String("error", err.Error())}
	}

	attrs := []slog.Attr{
		slog.String("error", err.Error()),
		slog.String("error_code", ce.Code),
		slog.String("category", string(ce.Category)),
		slog.Bool("retryable", ce.Retryable),
	}
	for k, v := range ce.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}
	return attrs
}
