package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v (%s)", err, buf.String())
	}
	return payload
}

func TestHandler_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, FormatJSON)

	logger.Info("backup", "password", "hunter2", "bearer_token", "abc", "private_key", "k", "status", "ok")

	payload := decode(t, &buf)
	for _, key := range []string{"password", "bearer_token", "private_key"} {
		if got := payload[key]; got != redactedValue {
			t.Errorf("%s = %v, want redacted", key, got)
		}
	}
	if payload["status"] != "ok" {
		t.Errorf("status = %v, want ok", payload["status"])
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Error("password leaked into output")
	}
}

func TestHandler_FingerprintsIdentities(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, FormatJSON)

	logger.Info("lookup", "identity", "alice@example.com", "identities", []string{"bob", "carol"})

	payload := decode(t, &buf)
	if _, ok := payload["identity"]; ok {
		t.Error("plain identity should not be present")
	}
	fp, _ := payload["identity_fp"].(string)
	if fp != Fingerprint("alice@example.com") {
		t.Errorf("identity_fp = %q, want %q", fp, Fingerprint("alice@example.com"))
	}
	list, _ := payload["identities_fp"].([]any)
	if len(list) != 2 || list[0] != Fingerprint("bob") {
		t.Errorf("identities_fp = %v", payload["identities_fp"])
	}
	if strings.Contains(buf.String(), "alice@example.com") {
		t.Error("identity leaked into output")
	}
}

func TestHandler_WithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, FormatJSON).
		With("identity", "alice").
		WithGroup("req")

	logger.Info("done", slog.Group("auth", "authorization", "Bearer x", "method", "GET"))

	out := buf.String()
	if strings.Contains(out, "Bearer x") {
		t.Errorf("authorization leaked: %s", out)
	}
	if !strings.Contains(out, "identity_fp") {
		t.Errorf("expected identity fingerprint from With: %s", out)
	}
	if !strings.Contains(out, `"method":"GET"`) {
		t.Errorf("expected untouched group attr: %s", out)
	}
}

func TestHandler_Contract(t *testing.T) {
	var buf bytes.Buffer
	h := Wrap(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if Wrap(h) != h {
		t.Error("wrapping twice should return the same handler")
	}

	rec := slog.NewRecord(time.Now().UTC(), slog.LevelWarn, "msg", 0)
	rec.AddAttrs(slog.String("sender", "bob"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !strings.Contains(buf.String(), "sender_fp") {
		t.Errorf("expected sender fingerprint, got %s", buf.String())
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("") != "" {
		t.Error("empty identity should have an empty fingerprint")
	}
	a := Fingerprint("alice")
	if !strings.HasPrefix(a, "fp_") || len(a) != len("fp_")+16 {
		t.Errorf("unexpected fingerprint format %q", a)
	}
	if a != Fingerprint(" alice ") {
		t.Error("fingerprint should ignore surrounding whitespace")
	}
	if a == Fingerprint("bob") {
		t.Error("different identities share a fingerprint")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	Discard().Info("nothing", "password", "x")
}
