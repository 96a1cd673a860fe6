package transport

import "log/slog"

// maxPreview bounds how much of a protocol line lands in a log record.
const maxPreview = 48

// transportLogger tags records with the channel kind and, once known, the
// port or address it talks to.
func transportLogger(kind, target string) *slog.Logger {
	logger := slog.With("component", "transport", "transport", kind)
	if target == "" {
		return logger
	}

	return logger.With("target", target)
}

// linePreview shortens a line for logging. CHUNK lines run to kilobytes.
func linePreview(line string) string {
	if len(line) <= maxPreview {
		return line
	}

	return line[:maxPreview] + "..."
}
