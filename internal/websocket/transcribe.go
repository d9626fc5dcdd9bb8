package websocket

import (
	"context"

	"go.uber.org/zap"

	"github.com/widyatma/lantang/domain/repositories"
)

// consecutive transcription failures before the session stops buffering
// audio and waits for an explicit restart
const degradedFailureThreshold = 3

// runTranscribe bridges audio segments to text through the Transcriber
// port. One transcription is in flight per session at a time; segments
// queue behind it.
func (p *Pipeline) runTranscribe(ctx context.Context) {
	defer close(p.session.transcripts)

	consecutiveFailures := 0

	for {
		var seg AudioSegment
		var ok bool
		select {
		case <-ctx.Done():
			return
		case seg, ok = <-p.session.segments:
			if !ok {
				return
			}
		}

		cfg := p.session.Config()
		result, err := p.transcriber.Transcribe(ctx, seg.Data, repositories.AudioConfig{
			SampleRate:     cfg.SampleRate,
			Encoding:       cfg.AudioFormat,
			Language:       cfg.LanguageCode,
			InterimResults: cfg.InterimResults,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveFailures++
			if p.metrics != nil {
				p.metrics.ProviderErrors.WithLabelValues("transcriber").Inc()
			}
			p.logger.Error("transcription failed",
				zap.Uint64("seq", seg.Seq),
				zap.Int("consecutive", consecutiveFailures),
				zap.Error(err))
			p.sendControl(ctx, NewErrorMessage("transcription_failed", err.Error()))

			if consecutiveFailures >= degradedFailureThreshold && !p.session.Degraded() {
				p.session.degraded.Store(true)
				p.logger.Warn("entering degraded mode after repeated transcription failures")
				p.sendControl(ctx, NewErrorMessage("degraded",
					"transcription degraded; audio buffering paused until start_recording"))
			}
			continue
		}
		consecutiveFailures = 0

		// A low-confidence final still counts as a completed
		// transcription: "said but unclear" is not "nothing said".
		if result.IsFinal {
			p.session.transcriptionsCompleted.Add(1)
		}
		if result.Confidence < p.tuning.ConfidenceFloor {
			p.logger.Debug("discarding low-confidence transcript",
				zap.Float64("confidence", result.Confidence),
				zap.Bool("isFinal", result.IsFinal))
			continue
		}

		if result.IsFinal || cfg.InterimResults {
			p.sendControl(ctx, TranscriptMessage{
				Type:       MessageTypeTranscript,
				SessionID:  p.session.ID,
				Transcript: result.Text,
				Confidence: result.Confidence,
				IsFinal:    result.IsFinal,
				Timestamp:  nowStamp(),
			})
		}
		if !result.IsFinal {
			continue
		}

		select {
		case p.session.transcripts <- transcriptItem{Result: result, CapturedAt: seg.CapturedAt}:
		case <-ctx.Done():
			return
		}
	}
}
