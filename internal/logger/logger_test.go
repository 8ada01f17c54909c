package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if ln == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			t.Fatalf("decode %q: %v", ln, err)
		}
		out = append(out, m)
	}
	return out
}

func TestBuild_FieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn", Service: "quadkey-index", Component: "test"}, &buf)

	zl.Info().Msg("dropped")
	zl.Warn().Str("quadkey", "0221").Msg("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %s", len(lines), buf.String())
	}
	ln := lines[0]
	if ln["msg"] != "kept" || ln["level"] != "warn" || ln["service"] != "quadkey-index" ||
		ln["component"] != "test" || ln["quadkey"] != "0221" {
		t.Fatalf("unexpected line: %v", ln)
	}
	if _, ok := ln["timestamp"]; !ok {
		t.Fatalf("missing timestamp: %v", ln)
	}
}

func TestFromContext_AttachesRequestFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug"}, &buf)

	ctx := WithRequestID(context.Background(), "abc123")
	ctx = WithComponent(ctx, "http")
	ctx = WithLayer(ctx, "vehicles")
	FromContext(ctx, &zl).Info().Msg("hello")

	ln := decodeLines(t, &buf)[0]
	if ln["request_id"] != "abc123" || ln["component"] != "http" || ln["layer"] != "vehicles" {
		t.Fatalf("context fields missing: %v", ln)
	}
	if RequestID(ctx) != "abc123" {
		t.Fatalf("RequestID=%q", RequestID(ctx))
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	id := RequestID(WithRequestID(context.Background(), ""))
	if len(id) != 16 {
		t.Fatalf("generated id %q, want 16 hex chars", id)
	}
}

func TestFromContext_NilParentDiscards(t *testing.T) {
	l := FromContext(context.Background(), nil)
	l.Error().Msg("nowhere")
}

func TestSlogBridge(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	sl := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "r1")
	sl.DebugContext(ctx, "filtered")
	sl.With("precision", 16).WithGroup("req").InfoContext(ctx, "encoded",
		"quadkey", "0221130032013320", "ok", true, "err", errors.New("none"))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %s", len(lines), buf.String())
	}
	ln := lines[0]
	if ln["msg"] != "encoded" || ln["request_id"] != "r1" || ln["level"] != "info" {
		t.Fatalf("unexpected line: %v", ln)
	}
	if ln["precision"] != float64(16) || ln["req.quadkey"] != "0221130032013320" || ln["req.ok"] != true {
		t.Fatalf("attrs not carried: %v", ln)
	}
	if ln["req.err"] != "none" {
		t.Fatalf("error attr not carried: %v", ln)
	}
}
