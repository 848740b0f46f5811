package obs

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	l := Logger()
	orig := l.Writer()
	var buf bytes.Buffer
	l.SetOutput(&buf)
	t.Cleanup(func() {
		l.SetOutput(orig)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLogWritesJSONLine(t *testing.T) {
	buf := captureLog(t)

	Log(LevelWarn, "store slow", map[string]any{"elapsed_ms": 12, "error": errors.New("boom")})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["level"] != LevelWarn || entry["msg"] != "store slow" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["error"] != "boom" {
		t.Fatalf("error field not stringified: %v", entry["error"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("missing ts")
	}
}

func TestLogRespectsLevel(t *testing.T) {
	buf := captureLog(t)
	SetLevel(LevelError)

	Log(LevelInfo, "hidden", nil)
	Log(LevelError, "shown", nil)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info entry should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("error entry missing: %s", out)
	}
}
