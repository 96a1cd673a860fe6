package notifications

import (
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"
)

// Payload is a generic user-facing notification payload.
type Payload struct {
	Title   string
	Content string
}

func (p Payload) empty() bool {
	return strings.TrimSpace(p.Title) == "" && strings.TrimSpace(p.Content) == ""
}

// Sender sends notifications using a platform-specific backend.
type Sender interface {
	Send(payload Payload)
}

// DesktopSender shows native desktop notifications. Delivery failures are
// logged; a missing notification daemon never fails the caller.
type DesktopSender struct {
	logger *slog.Logger
	notify func(title, message string, icon any) error
}

func NewDesktopSender(logger *slog.Logger) *DesktopSender {
	if logger == nil {
		logger = slog.Default()
	}

	return &DesktopSender{logger: logger, notify: beeep.Notify}
}

func (s *DesktopSender) Send(payload Payload) {
	if s == nil || payload.empty() {
		return
	}
	if err := s.notify(strings.TrimSpace(payload.Title), strings.TrimSpace(payload.Content), ""); err != nil {
		s.logger.Warn("desktop notification failed", "error", err)
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Send(Payload) {}
