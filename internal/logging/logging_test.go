package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetLogLevel(t *testing.T) {
	defer Log.SetLevel(logrus.InfoLevel)

	tests := []struct {
		input    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"INFO", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"fatal", logrus.FatalLevel},
	}

	for _, test := range tests {
		if err := SetLogLevel(test.input); err != nil {
			t.Errorf("SetLogLevel(%q) returned error: %v", test.input, err)
			continue
		}
		if Log.GetLevel() != test.expected {
			t.Errorf("SetLogLevel(%q) set %v, expected %v", test.input, Log.GetLevel(), test.expected)
		}
	}
}

func TestSetLogLevelRejectsUnknown(t *testing.T) {
	if err := SetLogLevel("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
