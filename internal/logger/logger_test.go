package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewFromConfig_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := NewFromConfig(tt.level, FormatJSON)
			if log.GetLevel() != tt.want {
				t.Errorf("NewFromConfig(%q) level = %v, want %v", tt.level, log.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("run_id", "r1").Msg("Reconciliation started")

	output := buf.String()
	if !strings.Contains(output, "Reconciliation started") || !strings.Contains(output, `"run_id":"r1"`) {
		t.Errorf("unexpected log output: %s", output)
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"tenant": "Anna Schmidt",
		"month":  "Mrz",
	})

	log.Info().Msg("Allocation written")

	output := buf.String()
	for _, want := range []string{`"tenant":"Anna Schmidt"`, `"month":"Mrz"`} {
		if !strings.Contains(output, want) {
			t.Errorf("output %s missing %s", output, want)
		}
	}
}
