package notifications

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestDesktopSenderTrimsAndSkipsEmpty(t *testing.T) {
	var got []string
	s := NewDesktopSender(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.notify = func(title, message string, _ any) error {
		got = append(got, title+"|"+message)
		return nil
	}

	s.Send(Payload{Title: "  ", Content: ""})
	s.Send(Payload{Title: " Dump received ", Content: "3 files\n"})

	if len(got) != 1 || got[0] != "Dump received|3 files" {
		t.Fatalf("notifications: got %v", got)
	}
}

func TestDesktopSenderSwallowsErrors(t *testing.T) {
	s := NewDesktopSender(slog.New(slog.NewTextHandler(io.Discard, nil)))
	calls := 0
	s.notify = func(string, string, any) error {
		calls++
		return errors.New("no dbus")
	}

	s.Send(Payload{Title: "x"})
	if calls != 1 {
		t.Fatalf("calls: got %d want 1", calls)
	}
}
