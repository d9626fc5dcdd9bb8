package websocket

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/widyatma/lantang/domain/repositories"
	"github.com/widyatma/lantang/usecase"
)

// runDeliver converts response units into framed audio and writes them
// to the socket under flow control. A synthesis failure for one unit is
// reported and the remaining units of the generation still go out:
// partial voice response beats none.
func (p *Pipeline) runDeliver(ctx context.Context) {
	for {
		var unit ResponseUnit
		var ok bool
		select {
		case <-ctx.Done():
			return
		case unit, ok = <-p.session.units:
			if !ok {
				return
			}
		}
		if !p.deliverUnit(ctx, unit) {
			return
		}
	}
}

func (p *Pipeline) deliverUnit(ctx context.Context, unit ResponseUnit) bool {
	cfg := p.session.Config()
	audio, err := p.synthesizer.Synthesize(ctx, unit.Text, repositories.VoiceConfig{
		VoiceName:   cfg.VoiceName,
		AudioFormat: cfg.AudioFormat,
		Language:    cfg.LanguageCode,
	})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		if p.metrics != nil {
			p.metrics.ProviderErrors.WithLabelValues("synthesizer").Inc()
		}
		p.logger.Error("synthesis failed",
			zap.String("messageID", unit.MessageID),
			zap.Int("chunkIndex", unit.ChunkIndex),
			zap.Error(err))
		p.sendControl(ctx, AudioResponseErrorMessage{
			Type:       MessageTypeAudioResponseError,
			SessionID:  p.session.ID,
			MessageID:  unit.MessageID,
			ChunkIndex: unit.ChunkIndex,
			Error:      err.Error(),
		})
		if unit.IsFinal {
			p.sendComplete(ctx, unit)
		}
		return true
	}

	// Bound each socket write so control messages can interleave.
	chunkSize := p.tuning.DeliveryChunkBytes
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	totalChunks := (len(audio) + chunkSize - 1) / chunkSize
	if totalChunks == 0 {
		totalChunks = 1
	}

	for i := 0; i < totalChunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		frame := EncodeAudioChunk(unit.MessageID, uint32(i), uint32(totalChunks), audio[start:end])
		if !p.sendBinary(ctx, frame) {
			return false
		}

		// Crude backpressure stand-in: the transport gives us no
		// write-readiness signal, so pace the chunks.
		if p.tuning.DeliveryPacing > 0 && i < totalChunks-1 {
			select {
			case <-time.After(p.tuning.DeliveryPacing):
			case <-ctx.Done():
				return false
			}
		}
	}

	p.sendControl(ctx, VoiceResponseReadyMessage{
		Type:       MessageTypeVoiceResponseReady,
		SessionID:  p.session.ID,
		MessageID:  unit.MessageID,
		ChunkIndex: unit.ChunkIndex,
		DurationMs: usecase.EstimateSpokenDuration(unit.Text, p.tuning.SpeakingWPM).Milliseconds(),
	})
	p.logger.Debug("unit delivered",
		zap.String("messageID", unit.MessageID),
		zap.Int("chunkIndex", unit.ChunkIndex),
		zap.Int("audioBytes", len(audio)),
		zap.Int("frames", totalChunks))

	if unit.IsFinal {
		p.sendComplete(ctx, unit)
	}
	return true
}

func (p *Pipeline) sendComplete(ctx context.Context, unit ResponseUnit) {
	p.sendControl(ctx, ResponseCompleteMessage{
		Type:                MessageTypeResponseComplete,
		SessionID:           p.session.ID,
		MessageID:           unit.MessageID,
		EstimatedDurationMs: usecase.EstimateSpokenDuration(unit.FullText, p.tuning.SpeakingWPM).Milliseconds(),
	})
}
