// Package logging builds the slog loggers used by the SDK and the reference
// server. Every logger it returns redacts secrets and fingerprints
// identities before records reach the output.
package logging

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

var (
	processNonce = randomNonce()

	// identityKeys hold user identities; their values are replaced by
	// per-process fingerprints.
	identityKeys = map[string]struct{}{
		"identity":   {},
		"identities": {},
		"recipient":  {},
		"sender":     {},
		"subject":    {},
	}

	sensitiveKeyParts = []string{
		"token", "secret", "password", "passphrase", "authorization",
		"private_key", "privatekey", "seed", "plaintext",
	}
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// New returns a sanitizing logger writing to w.
func New(w io.Writer, level slog.Level, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == FormatText {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(Wrap(h))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// Handler sanitizes attributes before passing records to the next handler.
type Handler struct {
	next slog.Handler
}

// Wrap returns next wrapped in a sanitizing Handler. Wrapping a Handler
// again returns it unchanged.
func Wrap(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	if h, ok := next.(*Handler); ok {
		return h
	}
	return &Handler{next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(sanitizeAttrs(attrs))}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}

// SanitizeAttr redacts sensitive keys, fingerprints identity keys and
// recurses into groups.
func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lower := strings.ToLower(key)

	switch {
	case isSensitiveKey(lower):
		return slog.String(key, redactedValue)
	case isIdentityKey(lower):
		return slog.Any(key+"_fp", fingerprintValue(attr.Value.Resolve()))
	case attr.Value.Kind() == slog.KindGroup:
		return slog.Attr{Key: key, Value: slog.GroupValue(sanitizeAttrs(attr.Value.Group())...)}
	}
	return attr
}

// Fingerprint returns a stable, per-process pseudonym for an identity.
// The same identity maps to the same fingerprint until the process restarts.
func Fingerprint(identity string) string {
	trimmed := strings.TrimSpace(identity)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed + "|" + processNonce))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func fingerprintValue(v slog.Value) any {
	if v.Kind() == slog.KindAny {
		if ids, ok := v.Any().([]string); ok {
			out := make([]string, len(ids))
			for i, id := range ids {
				out[i] = Fingerprint(id)
			}
			return out
		}
	}
	return Fingerprint(v.String())
}

func sanitizeAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, SanitizeAttr(attr))
	}
	return out
}

func isIdentityKey(key string) bool {
	_, ok := identityKeys[key]
	return ok
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallback_nonce"
	}
	return hex.EncodeToString(buf)
}
