package debugconfig

import (
	"bytes"
	"log/slog"
	"testing"

	config "github.com/ironarm/armjit/config/configparser"
	"github.com/ironarm/armjit/logging"
)

func newTestHandler() *logging.Handler {
	return logging.NewHandler(&bytes.Buffer{}, &slog.HandlerOptions{}, false)
}

func TestSetDebugRejectsUnknownSubsystem(t *testing.T) {
	SetHandler(newTestHandler())
	err := setDebug(config.NoAddr, "NETWORK", []config.Option{{Name: "ON"}})
	if err == nil {
		t.Fatal("expected error for unknown subsystem")
	}
}

func TestSetDebugRequiresHandler(t *testing.T) {
	SetHandler(nil)
	err := setDebug(config.NoAddr, "DISPATCHER", []config.Option{{Name: "ON"}})
	if err == nil {
		t.Fatal("expected error when no handler installed")
	}
}

func TestSetDebugRequiresAnOption(t *testing.T) {
	SetHandler(newTestHandler())
	if err := setDebug(config.NoAddr, "EMIT", nil); err == nil {
		t.Fatal("expected error for missing options")
	}
}

func TestSetDebugRejectsUnknownOption(t *testing.T) {
	SetHandler(newTestHandler())
	err := setDebug(config.NoAddr, "BLOCKCACHE", []config.Option{{Name: "VERBOSE"}})
	if err == nil {
		t.Fatal("expected error for unrecognized option")
	}
}

func TestSetDebugOnOffRoundTrip(t *testing.T) {
	SetHandler(newTestHandler())
	if err := setDebug(config.NoAddr, "ALL", []config.Option{{Name: "ON"}}); err != nil {
		t.Fatalf("enabling debug: %v", err)
	}
	if err := setDebug(config.NoAddr, "ALL", []config.Option{{Name: "OFF"}}); err != nil {
		t.Fatalf("disabling debug: %v", err)
	}
}

func TestSetDebugAcceptsCommaValues(t *testing.T) {
	SetHandler(newTestHandler())
	trace := "TRACE"
	opt := config.Option{Name: "ON", Value: []*string{&trace}}
	if err := setDebug(config.NoAddr, "TRANSLATOR", []config.Option{opt}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
