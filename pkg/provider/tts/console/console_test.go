package console

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ethanwacker/batcomputer/pkg/provider/tts"
)

func TestSpeak_LogsUtterance(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := New(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := s.Speak(context.Background(), tts.NewUtterance("Bat Computer online.")); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "Bat Computer online.") {
		t.Errorf("log output %q does not contain the utterance", got)
	}
}

func TestSpeak_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(nil)
	if err := s.Speak(ctx, tts.NewUtterance("hello")); err == nil {
		t.Fatal("Speak err = nil; want context error")
	}
}
