package logx

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCriticalDoesNotExitAndIsTagged(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug")

	log.Critical("env missing", String("var", "TELEGRAM_TOKEN"))

	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if m["level"] != "critical" {
		t.Fatalf("level = %v, want critical", m["level"])
	}
	if m["var"] != "TELEGRAM_TOKEN" {
		t.Fatalf("var = %v", m["var"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info")

	log.Debug("hidden")
	log.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("info line missing: %q", out)
	}
}

func TestWithKeepsFixedFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "poller"))
	log.Info("tick", Int64("cursor", 42))

	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["comp"] != "poller" || m["cursor"] != float64(42) {
		t.Fatalf("unexpected fields: %v", m)
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var log Logger
	if !log.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	log.Error("nothing happens")
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"", "debug", "INFO", "warning", "critical"} {
		if !ValidLevel(s) {
			t.Fatalf("ValidLevel(%q) = false", s)
		}
	}
	if ValidLevel("loud") {
		t.Fatal("ValidLevel(loud) = true")
	}
}

func TestServiceApplyFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()

	if log.Enabled(LevelDebug) {
		t.Fatal("debug should be disabled at info level")
	}
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	if !log.Enabled(LevelDebug) {
		t.Fatal("Apply did not lower the level for live loggers")
	}
}

func TestConsoleShowsCriticalTag(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(newConsoleWriter(&buf))
	zl.WithLevel(LevelCritical).Msg("boom")
	if !strings.Contains(buf.String(), "CRT") {
		t.Fatalf("console line = %q, want CRT tag", buf.String())
	}
}
