package websocket

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/widyatma/lantang/usecase"
)

// runRespond turns finalized transcripts into ordered response units.
// One transcript is processed fully before the next is taken, so a new
// transcript's units never interleave with a prior one's.
func (p *Pipeline) runRespond(ctx context.Context) {
	defer close(p.session.units)

	for {
		var item transcriptItem
		var ok bool
		select {
		case <-ctx.Done():
			return
		case item, ok = <-p.session.transcripts:
			if !ok {
				return
			}
		}
		if !p.handleTranscript(ctx, item) {
			return
		}
	}
}

// handleTranscript runs one generation and enqueues its units in
// strict order. Returns false when the pipeline is shutting down.
func (p *Pipeline) handleTranscript(ctx context.Context, item transcriptItem) bool {
	cfg := p.session.Config()
	result := p.responder.Respond(ctx, usecase.Request{
		OwnerID:     p.session.OwnerID,
		SessionID:   p.session.ID,
		Transcript:  item.Result.Text,
		Confidence:  item.Result.Confidence,
		CapturedAt:  item.CapturedAt,
		WithEmotion: cfg.EnableEmotionDetection,
		WithContext: cfg.EnableRAG,
	})
	if ctx.Err() != nil {
		return false
	}

	messageID := uuid.NewString()
	if result.Fallback {
		if p.metrics != nil {
			p.metrics.ProviderErrors.WithLabelValues("generator").Inc()
		}
		p.sendControl(ctx, NewErrorMessage("generation_failed", "response generation failed, sending fallback"))
	}

	p.sendControl(ctx, AIResponseMessage{
		Type:      MessageTypeAIResponse,
		SessionID: p.session.ID,
		MessageID: messageID,
		Text:      result.Text,
		Emotion:   result.Emotion,
	})

	total := len(result.Units)
	generatedAt := time.Now()
	for i, text := range result.Units {
		p.sendControl(ctx, AIResponseChunkMessage{
			Type:        MessageTypeAIResponseChunk,
			SessionID:   p.session.ID,
			MessageID:   messageID,
			Text:        text,
			ChunkIndex:  i,
			TotalChunks: total,
			IsFinal:     i == total-1,
		})

		unit := ResponseUnit{
			MessageID:   messageID,
			Text:        text,
			ChunkIndex:  i,
			TotalChunks: total,
			IsFinal:     i == total-1,
			GeneratedAt: generatedAt,
		}
		if unit.IsFinal {
			unit.FullText = result.Text
		}
		select {
		case p.session.units <- unit:
		case <-ctx.Done():
			return false
		}
	}

	p.session.recordTurn(result.Latency)
	if p.metrics != nil {
		p.metrics.ObserveTurnLatency(result.Latency)
	}
	p.logger.Info("response generated",
		zap.String("messageID", messageID),
		zap.Int("units", total),
		zap.Bool("fallback", result.Fallback),
		zap.Duration("latency", result.Latency))
	return true
}
