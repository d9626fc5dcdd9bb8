package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/widyatma/lantang/domain/repositories"
	"github.com/widyatma/lantang/internal/observability"
	"github.com/widyatma/lantang/usecase"
)

// Tuning carries the pipeline thresholds. All defaults are tunable
// configuration, not load-bearing constants.
type Tuning struct {
	SegmentBytes     int
	SegmentIdleFlush time.Duration
	SpeechRatio      float64
	VADWindowFrames  int
	VADEnergyFloor   float64

	RawQueueDepth        int
	AudioQueueDepth      int
	TranscriptQueueDepth int
	ResponseQueueDepth   int

	ConfidenceFloor float64

	DeliveryChunkBytes int
	DeliveryPacing     time.Duration
	SpeakingWPM        int

	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
	DrainGrace       time.Duration
}

// DefaultTuning returns the stock thresholds.
func DefaultTuning() Tuning {
	return Tuning{
		SegmentBytes:         8 * 1024,
		SegmentIdleFlush:     time.Second,
		SpeechRatio:          0.3,
		VADWindowFrames:      10,
		VADEnergyFloor:       500,
		RawQueueDepth:        256,
		AudioQueueDepth:      64,
		TranscriptQueueDepth: 32,
		ResponseQueueDepth:   32,
		ConfidenceFloor:      0.5,
		DeliveryChunkBytes:   64 * 1024,
		DeliveryPacing:       10 * time.Millisecond,
		SpeakingWPM:          150,
		HandshakeTimeout:     30 * time.Second,
		IdleTimeout:          60 * time.Second,
		DrainGrace:           2 * time.Second,
	}
}

func (t Tuning) queueDepths() QueueDepths {
	return QueueDepths{
		Raw:        t.RawQueueDepth,
		Audio:      t.AudioQueueDepth,
		Transcript: t.TranscriptQueueDepth,
		Response:   t.ResponseQueueDepth,
	}
}

// Pipeline runs the four per-session stage tasks: ingestion,
// transcription, response orchestration, and synthesis/delivery. All
// cross-stage handoff goes through the session's bounded queues; each
// queue has exactly one producer and one consumer.
type Pipeline struct {
	session     *Session
	tuning      Tuning
	transcriber repositories.Transcriber
	synthesizer repositories.Synthesizer
	responder   *usecase.Responder
	out         chan<- WriteData

	logger  *zap.Logger
	metrics *observability.Metrics
}

func newPipeline(
	session *Session,
	tuning Tuning,
	transcriber repositories.Transcriber,
	synthesizer repositories.Synthesizer,
	responder *usecase.Responder,
	out chan<- WriteData,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		session:     session,
		tuning:      tuning,
		transcriber: transcriber,
		synthesizer: synthesizer,
		responder:   responder,
		out:         out,
		logger:      logger.With(zap.String("sessionID", session.ID)),
		metrics:     metrics,
	}
}

// Run blocks until all four stage tasks have exited, then marks the
// session Closed. Cancellation is cooperative: each stage checks ctx at
// its next suspension point and flushes at most one in-flight item.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		p.runIngest(ctx)
	}()
	go func() {
		defer wg.Done()
		p.runTranscribe(ctx)
	}()
	go func() {
		defer wg.Done()
		p.runRespond(ctx)
	}()
	go func() {
		defer wg.Done()
		p.runDeliver(ctx)
	}()
	wg.Wait()

	p.session.transitionTo(StateClosed)
	close(p.session.done)
	p.logger.Info("pipeline exited", zap.String("state", p.session.State().String()))
}

// sendControl marshals a control message and hands it to the write
// pump. Drops the message if the connection is already going away.
func (p *Pipeline) sendControl(ctx context.Context, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to marshal control message", zap.Error(err))
		return
	}
	select {
	case p.out <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	case <-ctx.Done():
	}
}

func (p *Pipeline) sendBinary(ctx context.Context, frame []byte) bool {
	select {
	case p.out <- WriteData{Type: websocket.BinaryMessage, Payload: frame}:
		return true
	case <-ctx.Done():
		return false
	}
}
