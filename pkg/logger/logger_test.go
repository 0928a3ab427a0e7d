package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLevelChangesFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(INFO)
	log.SetOutput(&buf)

	log.Debugw("hidden at info")
	if buf.Len() != 0 {
		t.Fatalf("debug message leaked at INFO level: %q", buf.String())
	}

	log.SetLevel(DEBUG)
	log.Debugw("visible at debug")
	if !strings.Contains(buf.String(), "visible at debug") {
		t.Errorf("debug message missing after SetLevel(DEBUG): %q", buf.String())
	}

	buf.Reset()
	log.SetLevel(ERROR)
	log.Infow("hidden at error")
	log.Errorw("still visible")
	out := buf.String()
	if strings.Contains(out, "hidden at error") {
		t.Errorf("info message leaked at ERROR level: %q", out)
	}
	if !strings.Contains(out, "still visible") {
		t.Errorf("error message missing at ERROR level: %q", out)
	}
}

func TestKeyvalFormatting(t *testing.T) {
	var buf bytes.Buffer
	log := New(DEBUG)
	log.SetOutput(&buf)

	log.Infow("request handled", "status", 200, "path", "/api/health")

	out := buf.String()
	for _, want := range []string{"request handled", "status=200", "path=/api/health"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
