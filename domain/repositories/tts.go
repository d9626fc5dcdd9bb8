package repositories

import "context"

// Synthesizer abstracts text-to-speech services
type Synthesizer interface {
	// Synthesize converts one unit of text to raw audio bytes
	Synthesize(ctx context.Context, text string, config VoiceConfig) ([]byte, error)
}

// VoiceConfig represents voice settings for speech synthesis
type VoiceConfig struct {
	VoiceName    string  `json:"voice_name"`
	AudioFormat  string  `json:"audio_format"`
	Language     string  `json:"language"`
	SpeakingRate float64 `json:"speaking_rate"`
}
