package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.SegmentBytes != 8*1024 {
		t.Errorf("SegmentBytes = %d, want %d", cfg.SegmentBytes, 8*1024)
	}
	if cfg.SegmentIdleFlush != time.Second {
		t.Errorf("SegmentIdleFlush = %v, want 1s", cfg.SegmentIdleFlush)
	}
	if cfg.ConfidenceFloor != 0.5 {
		t.Errorf("ConfidenceFloor = %f, want 0.5", cfg.ConfidenceFloor)
	}
	if cfg.AudioQueueDepth != 64 || cfg.TranscriptQueueDepth != 32 || cfg.ResponseQueueDepth != 32 {
		t.Errorf("queue depths = %d/%d/%d, want 64/32/32",
			cfg.AudioQueueDepth, cfg.TranscriptQueueDepth, cfg.ResponseQueueDepth)
	}
	if cfg.HandshakeTimeout != 30*time.Second {
		t.Errorf("HandshakeTimeout = %v, want 30s", cfg.HandshakeTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LANTANG_SEGMENT_BYTES", "4096")
	t.Setenv("LANTANG_SEGMENT_IDLE_FLUSH", "250ms")
	t.Setenv("LANTANG_SPEECH_RATIO", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SegmentBytes != 4096 {
		t.Errorf("SegmentBytes = %d, want 4096", cfg.SegmentBytes)
	}
	if cfg.SegmentIdleFlush != 250*time.Millisecond {
		t.Errorf("SegmentIdleFlush = %v, want 250ms", cfg.SegmentIdleFlush)
	}
	if cfg.SpeechRatio != 0.5 {
		t.Errorf("SpeechRatio = %f, want 0.5", cfg.SpeechRatio)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "LANTANG_IDLE_TIMEOUT", "soon"},
		{"bad int", "LANTANG_SEGMENT_BYTES", "eight"},
		{"ratio out of range", "LANTANG_SPEECH_RATIO", "1.5"},
		{"negative segment bytes", "LANTANG_SEGMENT_BYTES", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() accepted %s=%s", tt.key, tt.value)
			}
		})
	}
}
