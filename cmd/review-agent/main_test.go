package main

import (
	"testing"
	"time"

	"github.com/bkyoung/review-agent/internal/adapter/observability"
	"github.com/bkyoung/review-agent/internal/config"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback time.Duration
		want     time.Duration
	}{
		{
			name:     "empty value uses fallback",
			value:    "",
			fallback: 20 * time.Minute,
			want:     20 * time.Minute,
		},
		{
			name:     "valid duration is parsed",
			value:    "45s",
			fallback: 20 * time.Minute,
			want:     45 * time.Second,
		},
		{
			name:     "compound duration is parsed",
			value:    "1h30m",
			fallback: 20 * time.Minute,
			want:     90 * time.Minute,
		},
		{
			name:     "malformed duration uses fallback",
			value:    "twenty minutes",
			fallback: 10 * time.Second,
			want:     10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDuration(tt.value, tt.fallback, "test duration")
			if got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestBuildLoggerDisabled(t *testing.T) {
	logger := buildLogger(config.ObservabilityConfig{
		Logging: config.LoggingConfig{Enabled: false},
	})

	if _, ok := logger.(observability.NopLogger); !ok {
		t.Errorf("expected NopLogger when logging is disabled, got %T", logger)
	}
}

func TestBuildLoggerEnabled(t *testing.T) {
	logger := buildLogger(config.ObservabilityConfig{
		Logging: config.LoggingConfig{Enabled: true, Level: "debug", Format: "json", RedactSecrets: true},
	})

	if _, ok := logger.(*observability.DefaultLogger); !ok {
		t.Errorf("expected DefaultLogger when logging is enabled, got %T", logger)
	}
}

func TestDefaultConfigPaths(t *testing.T) {
	paths := defaultConfigPaths()
	if len(paths) == 0 {
		t.Fatal("expected at least one config path")
	}
	if paths[0] != "." {
		t.Errorf("expected current directory first, got %q", paths[0])
	}
}
