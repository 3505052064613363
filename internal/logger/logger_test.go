package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zap.AtomicLevel
	}{
		{"debug", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"warn", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"nonsense", zap.NewAtomicLevelAt(zap.InfoLevel)},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(tt.level, "json", "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !logger.Core().Enabled(tt.want.Level()) {
				t.Errorf("expected %s to be enabled", tt.want.Level())
			}
			if tt.want.Level() > zap.DebugLevel && logger.Core().Enabled(tt.want.Level()-1) {
				t.Errorf("expected levels below %s to be disabled", tt.want.Level())
			}
		})
	}
}

func TestNew_WritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := New("info", "json", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("hello", zap.String("folder_id", "f1"))
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "sercha.log"))
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if !strings.Contains(string(data), `"folder_id":"f1"`) {
		t.Errorf("expected structured field in %s", data)
	}
}
