package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestPublishReachesSubscribersOfTopic(t *testing.T) {
	b := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer b.Close()

	sub := b.Subscribe("scan.status", "scan.finished")
	other := b.Subscribe("dump.line")

	b.Publish("scan.status", 42)

	select {
	case got := <-sub:
		if got != 42 {
			t.Fatalf("payload: got %v want 42", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}

	select {
	case got := <-other:
		t.Fatalf("unexpected delivery to other topic: %v", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPayloadType(t *testing.T) {
	if got := payloadType(nil); got != "<nil>" {
		t.Fatalf("nil payload: got %q", got)
	}
	if got := payloadType("x"); got != "string" {
		t.Fatalf("string payload: got %q", got)
	}
}
