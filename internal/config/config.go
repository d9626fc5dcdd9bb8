package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice streaming service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	JWTSecret string

	// Session lifecycle
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
	DrainGrace       time.Duration

	// Ingestion
	SegmentBytes     int
	SegmentIdleFlush time.Duration
	SpeechRatio      float64
	VADWindowFrames  int
	VADEnergyFloor   float64

	// Stage queues
	RawQueueDepth        int
	AudioQueueDepth      int
	TranscriptQueueDepth int
	ResponseQueueDepth   int

	// Transcription
	ConfidenceFloor float64

	// Delivery
	DeliveryChunkBytes int
	DeliveryPacing     time.Duration
	SpeakingWPM        int

	// Providers
	GeminiAPIKey       string
	GeminiModel        string
	ElevenLabsAPIKey   string
	ElevenLabsBaseURL  string
	ElevenLabsVoiceID  string
	ElevenLabsModelID  string
	ElevenLabsFormat   string
	MongoURI           string
	MongoDatabase      string
	UseMockProviders   bool
}

// Load reads environment variables and applies defaults. The pipeline
// thresholds ship as tunables rather than constants; none of them are
// known to be load-bearing at their default values.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("LANTANG_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("LANTANG_METRICS_NAMESPACE", "lantang"),
		JWTSecret:         strings.TrimSpace(os.Getenv("LANTANG_JWT_SECRET")),
		GeminiAPIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:       envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		ElevenLabsAPIKey:  strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")),
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_API_BASE_URL", "https://api.elevenlabs.io/v1"),
		ElevenLabsVoiceID: envOrDefault("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsModelID: envOrDefault("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		ElevenLabsFormat:  envOrDefault("ELEVENLABS_OUTPUT_FORMAT", "pcm_24000"),
		MongoURI:          envOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:     envOrDefault("MONGODB_DATABASE", "lantang"),

		ShutdownTimeout:  10 * time.Second,
		HandshakeTimeout: 30 * time.Second,
		IdleTimeout:      60 * time.Second,
		DrainGrace:       2 * time.Second,

		SegmentBytes:     8 * 1024,
		SegmentIdleFlush: time.Second,
		SpeechRatio:      0.3,
		VADWindowFrames:  10,
		VADEnergyFloor:   500,

		RawQueueDepth:        256,
		AudioQueueDepth:      64,
		TranscriptQueueDepth: 32,
		ResponseQueueDepth:   32,

		ConfidenceFloor: 0.5,

		DeliveryChunkBytes: 64 * 1024,
		DeliveryPacing:     10 * time.Millisecond,
		SpeakingWPM:        150,
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("LANTANG_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return cfg, err
	}
	if cfg.HandshakeTimeout, err = durationFromEnv("LANTANG_HANDSHAKE_TIMEOUT", cfg.HandshakeTimeout); err != nil {
		return cfg, err
	}
	if cfg.IdleTimeout, err = durationFromEnv("LANTANG_IDLE_TIMEOUT", cfg.IdleTimeout); err != nil {
		return cfg, err
	}
	if cfg.DrainGrace, err = durationFromEnv("LANTANG_DRAIN_GRACE", cfg.DrainGrace); err != nil {
		return cfg, err
	}
	if cfg.SegmentIdleFlush, err = durationFromEnv("LANTANG_SEGMENT_IDLE_FLUSH", cfg.SegmentIdleFlush); err != nil {
		return cfg, err
	}
	if cfg.DeliveryPacing, err = durationFromEnv("LANTANG_DELIVERY_PACING", cfg.DeliveryPacing); err != nil {
		return cfg, err
	}
	if cfg.SegmentBytes, err = intFromEnv("LANTANG_SEGMENT_BYTES", cfg.SegmentBytes); err != nil {
		return cfg, err
	}
	if cfg.DeliveryChunkBytes, err = intFromEnv("LANTANG_DELIVERY_CHUNK_BYTES", cfg.DeliveryChunkBytes); err != nil {
		return cfg, err
	}
	if cfg.SpeakingWPM, err = intFromEnv("LANTANG_SPEAKING_WPM", cfg.SpeakingWPM); err != nil {
		return cfg, err
	}
	if cfg.SpeechRatio, err = floatFromEnv("LANTANG_SPEECH_RATIO", cfg.SpeechRatio); err != nil {
		return cfg, err
	}
	if cfg.VADEnergyFloor, err = floatFromEnv("LANTANG_VAD_ENERGY_FLOOR", cfg.VADEnergyFloor); err != nil {
		return cfg, err
	}
	if cfg.ConfidenceFloor, err = floatFromEnv("LANTANG_CONFIDENCE_FLOOR", cfg.ConfidenceFloor); err != nil {
		return cfg, err
	}
	cfg.AllowAnyOrigin = boolFromEnv("LANTANG_ALLOW_ANY_ORIGIN", false)
	cfg.UseMockProviders = boolFromEnv("LANTANG_USE_MOCK_PROVIDERS", cfg.GeminiAPIKey == "" || cfg.ElevenLabsAPIKey == "")

	if cfg.SegmentBytes <= 0 {
		return cfg, fmt.Errorf("segment bytes must be positive, got %d", cfg.SegmentBytes)
	}
	if cfg.SpeechRatio < 0 || cfg.SpeechRatio > 1 {
		return cfg, fmt.Errorf("speech ratio must be within [0,1], got %f", cfg.SpeechRatio)
	}
	if cfg.ConfidenceFloor < 0 || cfg.ConfidenceFloor > 1 {
		return cfg, fmt.Errorf("confidence floor must be within [0,1], got %f", cfg.ConfidenceFloor)
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func boolFromEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
