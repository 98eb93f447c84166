package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("capture")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("session started", "target", "MyGame")

	out := buf.String()
	if strings.Contains(out, `msg="INFO session started`) {
		t.Fatalf("unexpected nested severity prefix in message: %s", out)
	}
	if !strings.Contains(out, "msg=\"session started\"") {
		t.Fatalf("expected plain message, got: %s", out)
	}
	if !strings.Contains(out, "component=capture") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "target=MyGame") {
		t.Fatalf("expected target field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("recorder")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestWithSessionAddsCorrelationField(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "debug", &buf)

	logger := WithSession(L("fanout"), "sess-1")
	logger.Info("consumer attached")

	out := buf.String()
	if !strings.Contains(out, "sessionId=sess-1") {
		t.Fatalf("expected sessionId field, got: %s", out)
	}
}
