package notify

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogNotifier_WritesEventAndReturnsNoRef(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Log: zerolog.New(&buf)}

	ref, err := n.Notify(context.Background(), Notification{
		Event:     EventRequestAccepted,
		UserID:    "u1",
		PartnerID: "u2",
		RequestID: 7,
		ChatID:    "chat-1",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if ref != "" {
		t.Fatalf("log notifier has no delivery handle, got %q", ref)
	}

	out := buf.String()
	for _, want := range []string{"request_accepted", "u1", "u2", "chat-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %q: %s", want, out)
		}
	}
}
