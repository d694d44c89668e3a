package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Port != defaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, defaultPort)
	}
	if cfg.SleepUS != defaultSleepUS {
		t.Errorf("SleepUS = %d, want %d", cfg.SleepUS, defaultSleepUS)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]string{"--port", "9090", "--sleep-us", "500", "--log-level", "debug", "--simulation-logging"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.SleepUS != 500 {
		t.Errorf("SleepUS = %d, want 500", cfg.SleepUS)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if !cfg.SimulationLogging {
		t.Error("SimulationLogging = false, want true")
	}
}

func TestParseRejectsPortOutOfRange(t *testing.T) {
	if _, err := Parse([]string{"--port", "80"}); err == nil {
		t.Fatal("Parse() error = nil, want error for port below minimum")
	}
	if _, err := Parse([]string{"--port", "65000"}); err == nil {
		t.Fatal("Parse() error = nil, want error for port above maximum")
	}
}

func TestParseRejectsSleepUSOutOfRange(t *testing.T) {
	if _, err := Parse([]string{"--sleep-us", "-1"}); err == nil {
		t.Fatal("Parse() error = nil, want error for negative sleep-us")
	}
	if _, err := Parse([]string{"--sleep-us", "2000000"}); err == nil {
		t.Fatal("Parse() error = nil, want error for sleep-us above maximum")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}
