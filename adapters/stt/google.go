package stt

import (
	"context"
	"fmt"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/widyatma/lantang/domain/repositories"
)

// GoogleTranscriber implements Transcriber for Google Cloud
// Speech-to-Text. One client is shared across all sessions; the API
// call itself is stateless per segment.
type GoogleTranscriber struct {
	client *speech.Client
}

// NewGoogleTranscriber creates a transcriber backed by Google Cloud
// Speech-to-Text. Credentials come from the environment
// (GOOGLE_APPLICATION_CREDENTIALS).
func NewGoogleTranscriber(ctx context.Context) (*GoogleTranscriber, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleTranscriber{client: client}, nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleTranscriber) Close() error {
	return g.client.Close()
}

// Transcribe recognizes one buffered audio segment. Segments are short
// (a few seconds at most), so the synchronous Recognize API fits better
// than a streaming session per segment.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (repositories.TranscriptResult, error) {
	if len(audio) == 0 {
		return repositories.TranscriptResult{}, fmt.Errorf("no audio data received")
	}

	encoding, err := audioEncoding(config.Encoding)
	if err != nil {
		return repositories.TranscriptResult{}, err
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(config.SampleRate),
			LanguageCode:    config.Language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return repositories.TranscriptResult{}, fmt.Errorf("failed to recognize audio: %w", err)
	}

	// Take the best alternative across all results.
	var best *speechpb.SpeechRecognitionAlternative
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		alt := result.Alternatives[0]
		if best == nil || alt.Confidence > best.Confidence {
			best = alt
		}
	}
	if best == nil || best.Transcript == "" {
		return repositories.TranscriptResult{}, fmt.Errorf("no speech detected in audio")
	}

	return repositories.TranscriptResult{
		Text:       best.Transcript,
		Confidence: float64(best.Confidence),
		IsFinal:    true,
		AudioSpan:  audioSpan(len(audio), config.SampleRate),
		DecodedAt:  time.Now(),
	}, nil
}

// audioSpan estimates the wall-clock span of a 16-bit mono PCM buffer.
func audioSpan(byteLen, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := byteLen / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// audioEncoding converts string encoding to Google Speech API enum
func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
