package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandleTagsBlockLifecycleEvents(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true)
	logger := slog.New(h)

	logger.Info("block ready", "event", "block_compiled", "addr", uint32(0x1000))

	line := buf.String()
	if !strings.Contains(line, "[COMPILED]") {
		t.Fatalf("expected a [COMPILED] tag, got: %q", line)
	}
	if !strings.Contains(line, "addr=4096") {
		t.Fatalf("expected attrs to carry their key, got: %q", line)
	}
}

func TestHandleLeavesOrdinaryLinesUntagged(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true)
	logger := slog.New(h)

	logger.Info("starting up")

	line := buf.String()
	for _, tag := range blockEventTags {
		if strings.Contains(line, tag) {
			t.Fatalf("unexpected tag %q in ordinary line: %q", tag, line)
		}
	}
}

func TestSetDebugControlsStderrEcho(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	if h.debug {
		t.Fatal("expected debug to start false")
	}
	h.SetDebug(true)
	if !h.debug {
		t.Fatal("expected SetDebug(true) to stick")
	}
}
