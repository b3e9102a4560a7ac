package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("also should not appear")
	logger.Warn("this should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Errorf("Debug/Info leaked through Warn-level filter: %s", output)
	}
	if !strings.Contains(output, "this should appear") {
		t.Errorf("Warn message missing from output: %s", output)
	}
}

func TestLoggerFormatArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("submitted", "seqnum", 7, "ep", 2)

	output := buf.String()
	if !strings.Contains(output, "seqnum=7") || !strings.Contains(output, "ep=2") {
		t.Errorf("expected key=value pairs in output, got: %s", output)
	}
}

func TestLoggerWithSeqNum(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.WithSeqNum(42).Info("canceled")

	output := buf.String()
	if !strings.Contains(output, "seq=42") {
		t.Errorf("expected seq=42 prefix in output, got: %s", output)
	}
}

func TestGlobalDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	defer SetDefault(NewLogger(nil))

	Info("global message")
	if !strings.Contains(buf.String(), "global message") {
		t.Errorf("expected global message in output, got: %s", buf.String())
	}
}
