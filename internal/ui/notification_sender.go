package ui

import (
	"fmt"
	"path"
	"strings"

	"fyne.io/fyne/v2"
	"github.com/dustin/go-humanize"

	"github.com/skobkin/macsniff/internal/events"
	"github.com/skobkin/macsniff/internal/notifications"
)

// FyneNotificationSender bridges app notifications to native Fyne notifications.
type FyneNotificationSender struct {
	app fyne.App
}

func NewFyneNotificationSender(app fyne.App) *FyneNotificationSender {
	return &FyneNotificationSender{app: app}
}

func (s *FyneNotificationSender) Send(notification notifications.Payload) {
	if s == nil || s.app == nil {
		return
	}

	title := strings.TrimSpace(notification.Title)
	content := strings.TrimSpace(notification.Content)
	if title == "" && content == "" {
		return
	}

	fyne.Do(func() {
		s.app.SendNotification(fyne.NewNotification(title, content))
	})
}

// notificationFor picks the device events worth a desktop notification.
func notificationFor(msg any) (notifications.Payload, bool) {
	switch m := msg.(type) {
	case events.StorageSaved:
		return notifications.Payload{
			Title:   "Scan saved",
			Content: fmt.Sprintf("%d MACs in %s", m.Records, path.Base(m.Path)),
		}, true
	case events.DumpFinished:
		return notifications.Payload{
			Title:   "Dump finished",
			Content: fmt.Sprintf("%d files, %s", m.Files, humanize.IBytes(uint64(m.TotalBytes))), // #nosec G115
		}, true
	case events.DeviceFailure:
		if !m.Fatal {
			return notifications.Payload{}, false
		}
		return notifications.Payload{Title: "Device error", Content: m.Err}, true
	default:
		return notifications.Payload{}, false
	}
}
