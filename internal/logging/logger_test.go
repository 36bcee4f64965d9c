package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"warning level", "warning", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Info", "Info", slog.LevelInfo},
		{"invalid level", "invalid", slog.LevelInfo},
		{"empty string", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("Default level = %q, want info", cfg.Level)
	}
	if cfg.FilePath != "" {
		t.Errorf("Default FilePath = %q, want empty", cfg.FilePath)
	}
	if cfg.MaxSizeMB != 100 {
		t.Errorf("Default MaxSizeMB = %d, want 100", cfg.MaxSizeMB)
	}
	if cfg.MaxBackups != 5 {
		t.Errorf("Default MaxBackups = %d, want 5", cfg.MaxBackups)
	}
	if !cfg.Console {
		t.Errorf("Default Console = %v, want true", cfg.Console)
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		logger, err := NewLogger(Config{Level: "info", Console: true})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger returned nil logger")
		}
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		logger, err := NewLogger(Config{
			Level:      "debug",
			FilePath:   logFile,
			MaxSizeMB:  10,
			MaxBackups: 3,
		})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.Info("test message")

		if _, err := os.Stat(logFile); os.IsNotExist(err) {
			t.Errorf("Log file was not created at %s", logFile)
		}
	})

	t.Run("creates log directory", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "nested", "test.log")

		logger, err := NewLogger(Config{Level: "info", FilePath: logFile, MaxSizeMB: 10})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.Info("test message")

		if _, err := os.Stat(logFile); os.IsNotExist(err) {
			t.Errorf("Log file was not created at %s", logFile)
		}
	})

	t.Run("no outputs configured defaults to console", func(t *testing.T) {
		logger, err := NewLogger(Config{Level: "info"})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger returned nil logger")
		}
	})
}

func TestSetDefault(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	err := SetDefault(Config{
		Level:      "debug",
		FilePath:   logFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
	})
	if err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	slog.Info("test message from default logger")

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		t.Errorf("Log file was not created at %s", logFile)
	}
}
