package websocket

import (
	"bytes"
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/widyatma/lantang/internal/audio"
)

// runIngest converts the inbound stream of raw binary chunks into
// bounded, recognizer-ready segments. A segment is emitted when the
// buffer reaches the byte threshold, when an explicit recording-stop
// boundary arrives, or when the idle flush window elapses with a
// non-empty buffer.
func (p *Pipeline) runIngest(ctx context.Context) {
	defer close(p.session.segments)

	var (
		buf     bytes.Buffer
		pending [][]byte
		seq     uint64
	)
	detector := audio.NewDetector(p.tuning.VADEnergyFloor, p.tuning.VADWindowFrames)

	idle := time.NewTimer(p.tuning.SegmentIdleFlush)
	defer idle.Stop()
	resetIdle := func() {
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(p.tuning.SegmentIdleFlush)
	}

	commitPending := func() {
		for _, frame := range pending {
			buf.Write(frame)
		}
		pending = pending[:0]
		detector.Reset()
	}

	flush := func(reason string) {
		commitPending()
		if buf.Len() == 0 {
			return
		}
		seq++
		seg := AudioSegment{
			Data:       append([]byte(nil), buf.Bytes()...),
			Seq:        seq,
			CapturedAt: time.Now(),
		}
		buf.Reset()
		p.enqueueSegment(seg)
		p.logger.Debug("segment emitted",
			zap.Uint64("seq", seg.Seq),
			zap.Int("bytes", len(seg.Data)),
			zap.String("reason", reason))
	}

	for {
		select {
		case <-ctx.Done():
			flush("cancel")
			return

		case frame, ok := <-p.session.audioIn:
			if !ok {
				flush("close")
				return
			}
			if frame.flush {
				flush("stop")
				continue
			}

			// Undersized frames cannot carry a full sample; skip them.
			if len(frame.data) < 2 {
				p.logger.Warn("skipping malformed audio frame", zap.Int("bytes", len(frame.data)))
				continue
			}

			// Chunk and byte counters move on every chunk, whatever the
			// gate or VAD decide.
			p.session.recordChunk(len(frame.data))

			// The gate was sampled when the frame was accepted; a later
			// stop_recording must not drop audio already in flight.
			if !frame.recording || p.session.Degraded() {
				continue
			}

			if p.session.Config().EnhancementLevel > 0 {
				detector.Classify(frame.data)
				pending = append(pending, frame.data)
				if detector.WindowFull() {
					if detector.SpeechRatio() >= p.tuning.SpeechRatio {
						commitPending()
					} else {
						// Whole window judged non-speech; discard it.
						pending = pending[:0]
						detector.Reset()
					}
				}
			} else {
				buf.Write(frame.data)
			}

			if buf.Len() >= p.tuning.SegmentBytes {
				flush("threshold")
			}
			resetIdle()

		case <-idle.C:
			if buf.Len() > 0 || len(pending) > 0 {
				flush("idle")
			}
			idle.Reset(p.tuning.SegmentIdleFlush)
		}
	}
}

// enqueueSegment offers a segment to the transcription queue. When the
// queue is full the oldest segment is dropped in its favor: stale audio
// has the least conversational value.
func (p *Pipeline) enqueueSegment(seg AudioSegment) {
	select {
	case p.session.segments <- seg:
		return
	default:
	}

	select {
	case <-p.session.segments:
		p.session.segmentsDropped.Add(1)
		if p.metrics != nil {
			p.metrics.SegmentsDropped.Inc()
		}
		p.logger.Warn("transcription backlog full, dropped oldest segment")
	default:
	}

	select {
	case p.session.segments <- seg:
	default:
	}
}
