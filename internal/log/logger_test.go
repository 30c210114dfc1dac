package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentStorage, Output: &buf})
	l.Info("saved snapshot", FieldSnapshotID, 7)

	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "snapshot_id=7") {
		t.Fatalf("unexpected log line %q", out)
	}

	buf.Reset()
	l.WithComponent(ComponentAMQP).Warn("publish failed")
	if !strings.Contains(buf.String(), "component=amqp") {
		t.Fatalf("WithComponent not applied: %q", buf.String())
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))

	sl.LogMutation(context.Background(), OpCollect, 12, NewFields().WithFee(3, "annual_2024", 50000))
	out := buf.String()
	for _, want := range []string{"operation=collect", "revision=12", "member_id=3", "fee_type=annual_2024", "amount_cents=50000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}

	buf.Reset()
	sl.LogError(context.Background(), "persist failed", errors.New("disk full"), ComponentStorage, OpPersist, NewFields())
	if !strings.Contains(buf.String(), `error="disk full"`) || !strings.Contains(buf.String(), "level=ERROR") {
		t.Fatalf("unexpected error line %q", buf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected a default logger")
	}
	l := Discard()
	if got := FromContext(NewContext(context.Background(), l)); got != l {
		t.Fatalf("expected the stored logger")
	}
}

func TestLogFields_HTTPResponse(t *testing.T) {
	f := NewFields().WithYear(2025).WithHTTPResponse(404, 12)
	if f[FieldYear] != 2025 || f[FieldStatusCode] != 404 || f[FieldSuccess] != false {
		t.Fatalf("unexpected fields %v", f)
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Fatalf("ToSlice should flatten every pair")
	}
}
