package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shayc/otto/internal/config"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected string
	}{
		{"seconds", 42 * time.Second, "42s"},
		{"minutes", 5 * time.Minute, "5m"},
		{"hours", 2 * time.Hour, "2h"},
		{"hours and minutes", 2*time.Hour + 30*time.Minute, "2h30m"},
		{"days", 49 * time.Hour, "2d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatDuration(tt.d)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.d, result, tt.expected)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
	}

	for _, tt := range tests {
		result := formatNumber(tt.n)
		if result != tt.expected {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.n, result, tt.expected)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("a1b2c3d4-0000-1111-2222-333344445555"); got != "a1b2c3d4" {
		t.Errorf("shortID(uuid) = %q, want a1b2c3d4", got)
	}
	if got := shortID("plain"); got != "plain" {
		t.Errorf("shortID(plain) = %q, want plain", got)
	}
}

func TestSnippet(t *testing.T) {
	if got := snippet("short text", 60); got != "short text" {
		t.Errorf("snippet(short) = %q, want unchanged", got)
	}

	long := strings.Repeat("x", 100)
	got := snippet(long, 60)
	if len(got) != 60 {
		t.Errorf("snippet(long) has length %d, want 60", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("snippet(long) = %q, want ... suffix", got)
	}

	multi := snippet("line one\nline two", 60)
	if strings.Contains(multi, "\n") {
		t.Errorf("snippet left a newline in %q", multi)
	}
}

func TestWriteProjectConfig(t *testing.T) {
	dir := t.TempDir()

	path, err := writeProjectConfig(dir)
	if err != nil {
		t.Fatalf("writeProjectConfig() error = %v, want nil", err)
	}
	if path != filepath.Join(dir, ".otto.yaml") {
		t.Errorf("writeProjectConfig() path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v, want nil", err)
	}
	if !strings.Contains(string(data), "Otto Project Configuration") {
		t.Error("template missing header comment")
	}

	// A second call must not overwrite.
	again, err := writeProjectConfig(dir)
	if err != nil {
		t.Fatalf("writeProjectConfig() second call error = %v, want nil", err)
	}
	if again != "" {
		t.Errorf("writeProjectConfig() second call = %q, want empty", again)
	}
}

func TestUpdateGitignore(t *testing.T) {
	dir := t.TempDir()
	gitignore := filepath.Join(dir, ".gitignore")
	if err := os.WriteFile(gitignore, []byte("node_modules/\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v, want nil", err)
	}

	if err := updateGitignore(dir); err != nil {
		t.Fatalf("updateGitignore() error = %v, want nil", err)
	}

	data, err := os.ReadFile(gitignore)
	if err != nil {
		t.Fatalf("ReadFile() error = %v, want nil", err)
	}
	content := string(data)
	if !strings.Contains(content, "node_modules/") {
		t.Error("existing entries were lost")
	}
	if !strings.Contains(content, ".otto/logs/") {
		t.Error("otto entries were not added")
	}

	// Idempotent: a second run changes nothing.
	if err := updateGitignore(dir); err != nil {
		t.Fatalf("updateGitignore() second call error = %v, want nil", err)
	}
	after, _ := os.ReadFile(gitignore)
	if string(after) != content {
		t.Error("second updateGitignore() changed the file")
	}
}

func TestConfigKeyRoundTrip(t *testing.T) {
	cfg := &config.Config{}

	tests := []struct {
		key   string
		value string
	}{
		{"backends.remote.model", "claude-sonnet-4-20250514"},
		{"backends.local.url", "http://localhost:11434"},
		{"memory.retention_days", "30"},
		{"power.sample_interval", "45s"},
		{"sched.backup_schedule", "15 2 * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := setConfigValue(cfg, tt.key, tt.value); err != nil {
				t.Fatalf("setConfigValue(%q) error = %v, want nil", tt.key, err)
			}
			got, err := getConfigValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue(%q) error = %v, want nil", tt.key, err)
			}
			if got != tt.value {
				t.Errorf("getConfigValue(%q) = %q, want %q", tt.key, got, tt.value)
			}
		})
	}
}

func TestConfigKeyValidation(t *testing.T) {
	cfg := &config.Config{}

	if err := setConfigValue(cfg, "no.such.key", "x"); err == nil {
		t.Error("setConfigValue accepted an unknown key")
	}
	if _, err := getConfigValue(cfg, "no.such.key"); err == nil {
		t.Error("getConfigValue accepted an unknown key")
	}
	if err := setConfigValue(cfg, "memory.retention_days", "soon"); err == nil {
		t.Error("setConfigValue accepted a non-numeric retention")
	}
	if err := setConfigValue(cfg, "power.sample_interval", "whenever"); err == nil {
		t.Error("setConfigValue accepted a malformed duration")
	}
}

func TestConfigMasksAPIKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.Anthropic.APIKey = "sk-secret"

	got, err := getConfigValue(cfg, "anthropic.api_key")
	if err != nil {
		t.Fatalf("getConfigValue() error = %v, want nil", err)
	}
	if got != "****" {
		t.Errorf("getConfigValue(api_key) = %q, want masked", got)
	}
	if strings.Contains(got, "secret") {
		t.Error("API key leaked through display")
	}
}
