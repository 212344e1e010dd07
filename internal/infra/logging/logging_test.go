//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"asistente-tienda/internal/config"
)

func TestWithAttachesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := newTo(&buf, config.LogConfig{Level: "info", Format: "json"}, false)

	ctx := WithTraceID(context.Background(), "tr-1")
	ctx = WithSessID(ctx, "01J0")
	ctx = WithClient(ctx, "127.0.0.1:5000")
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	for k, want := range map[string]string{"trace_id": "tr-1", "session_id": "01J0", "client": "127.0.0.1:5000", "message": "hello"} {
		if line[k] != want {
			t.Errorf("%s = %v, want %q", k, line[k], want)
		}
	}
	if TraceID(ctx) != "tr-1" {
		t.Fatalf("TraceID = %q", TraceID(ctx))
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("short", false); got != "***" {
		t.Fatalf("got %q", got)
	}
	if got := Redact("¿tienen laptops baratas?", true); got != "¿tienen laptops baratas?" {
		t.Fatalf("dev mode must not redact, got %q", got)
	}
	if got := Redact("abcdefghijkl", false); got != "abcd...kl" {
		t.Fatalf("got %q", got)
	}
	if got := Redact("¿Cuánto cuesta el envío?", false); got != "¿Cuá...o?" {
		t.Fatalf("got %q", got)
	}
}
