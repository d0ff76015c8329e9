package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("Format = %q, want console", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("Output = %q, want stdout", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp on by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "debug", Format: "json"}, false},
		{"bad level", Config{Level: "verbose", Format: "json"}, true},
		{"bad format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFieldsBuilder(t *testing.T) {
	m := Fields("operation", "centrality", "attempt", 2)
	if m["operation"] != "centrality" {
		t.Errorf("operation = %v", m["operation"])
	}
	if m["attempt"] != 2 {
		t.Errorf("attempt = %v", m["attempt"])
	}

	// Odd trailing value and non-string keys are dropped, not panicked on.
	m = Fields("a", 1, "dangling")
	if len(m) != 1 {
		t.Errorf("len = %d, want 1", len(m))
	}
	m = Fields(42, "value")
	if len(m) != 0 {
		t.Errorf("len = %d, want 0", len(m))
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	m := ErrorFields("probe", errors.New("refused"))
	if m[FieldOperation] != "probe" || m[FieldError] != "refused" {
		t.Errorf("ErrorFields = %v", m)
	}

	m = DurationFields("dispatch", 1500*time.Millisecond)
	if m[FieldDuration] != int64(1500) {
		t.Errorf("duration = %v, want 1500", m[FieldDuration])
	}
}

func TestServiceAndComponentTagging(t *testing.T) {
	l := New(&Config{Level: "debug", Format: "json", Output: "stdout"}, "gatekit")

	var buf bytes.Buffer
	zl := l.WithComponent("gateway").GetLogger().Output(&buf)
	zl.Info().Msg("served")

	out := buf.String()
	if !strings.Contains(out, `"service":"gatekit"`) {
		t.Errorf("missing service tag: %s", out)
	}
	if !strings.Contains(out, `"component":"gateway"`) {
		t.Errorf("missing component tag: %s", out)
	}
}

func TestServiceNameFromConfig(t *testing.T) {
	l := New(&Config{ServiceName: "analytics-gw", Level: "debug", Format: "json", Output: "stdout"}, "")

	var buf bytes.Buffer
	zl := l.GetLogger().Output(&buf)
	zl.Info().Msg("served")

	if out := buf.String(); !strings.Contains(out, `"service":"analytics-gw"`) {
		t.Errorf("missing service tag from config: %s", out)
	}

	l = New(&Config{ServiceName: "analytics-gw", Level: "debug", Format: "json", Output: "stdout"}, "override")
	buf.Reset()
	zl = l.GetLogger().Output(&buf)
	zl.Info().Msg("served")

	if out := buf.String(); !strings.Contains(out, `"service":"override"`) {
		t.Errorf("explicit name should win: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	l := New(&Config{Level: "warn", Format: "json", Output: "stdout"}, "")

	var buf bytes.Buffer
	zl := l.GetLogger().Output(&buf)
	zl.Debug().Msg("hidden")
	zl.Warn().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line emitted at warn level: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestNopDiscards(t *testing.T) {
	// Must not panic and must not write anywhere.
	Nop().WithComponent("x").Info("ignored", Fields("k", "v"))
}
