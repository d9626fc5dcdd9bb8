// Standalone check for the Eleven Labs adapter: synthesizes one sentence
// and writes the raw PCM to disk.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/widyatma/lantang/adapters/tts"
	"github.com/widyatma/lantang/domain/repositories"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		logger.Fatal("ELEVENLABS_API_KEY is required")
	}

	synth, err := tts.NewElevenLabs(tts.ElevenLabsConfig{APIKey: apiKey}, logger)
	if err != nil {
		logger.Fatal("failed to initialize synthesizer", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	audio, err := synth.Synthesize(ctx, "Hello! This is a demonstration of the Eleven Labs text to speech integration.", repositories.VoiceConfig{})
	if err != nil {
		logger.Fatal("synthesis failed", zap.Error(err))
	}

	if err := os.WriteFile("example_output.pcm", audio, 0o644); err != nil {
		logger.Fatal("failed to write output", zap.Error(err))
	}

	logger.Info("wrote example_output.pcm",
		zap.Int("bytes", len(audio)),
		zap.String("play_with", "ffplay -f s16le -ar 24000 -ch_layout mono example_output.pcm"),
	)
}
