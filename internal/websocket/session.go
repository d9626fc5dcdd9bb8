package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/widyatma/lantang/domain/repositories"
)

// SessionState tracks the session lifecycle:
// Created → Configured → Active → Closing → Closed.
// Recording toggles happen within Active.
type SessionState int32

const (
	StateCreated SessionState = iota
	StateConfigured
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionConfig holds the per-session audio and feature settings.
// Every field is independently overridable through update_config.
type SessionConfig struct {
	LanguageCode           string `json:"language_code"`
	SampleRate             int    `json:"sample_rate"`
	InterimResults         bool   `json:"interim_results"`
	VoiceName              string `json:"voice_name"`
	AudioFormat            string `json:"audio_format"`
	EnhancementLevel       int    `json:"enhancement_level"`
	EnableEmotionDetection bool   `json:"enable_emotion_detection"`
	EnableRAG              bool   `json:"enable_rag"`
}

// DefaultSessionConfig returns the config applied before start_session
// overrides arrive.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		LanguageCode: "en-US",
		SampleRate:   16000,
		AudioFormat:  "LINEAR16",
		VoiceName:    "default",
	}
}

// ConfigPatch is a partial SessionConfig; nil fields are left alone.
// Unrecognized JSON fields are ignored, not rejected.
type ConfigPatch struct {
	LanguageCode           *string `json:"language_code"`
	SampleRate             *int    `json:"sample_rate"`
	InterimResults         *bool   `json:"interim_results"`
	VoiceName              *string `json:"voice_name"`
	AudioFormat            *string `json:"audio_format"`
	EnhancementLevel       *int    `json:"enhancement_level"`
	EnableEmotionDetection *bool   `json:"enable_emotion_detection"`
	EnableRAG              *bool   `json:"enable_rag"`
}

// Stats is a snapshot of the session's monotonically increasing counters.
type Stats struct {
	ChunksReceived          uint64 `json:"chunks_received"`
	BytesProcessed          uint64 `json:"bytes_processed"`
	TranscriptionsCompleted uint64 `json:"transcriptions_completed"`
	ResponsesGenerated      uint64 `json:"responses_generated"`
	SegmentsDropped         uint64 `json:"segments_dropped"`
	FramesDropped           uint64 `json:"frames_dropped"`
	AvgTurnLatencyMs        int64  `json:"avg_turn_latency_ms"`
}

// AudioSegment is one recognizer-ready span of buffered audio. Produced
// by the ingestion stage, consumed exactly once by transcription.
type AudioSegment struct {
	Data       []byte
	Seq        uint64
	CapturedAt time.Time
}

// transcriptItem pairs a recognition result with the capture time of
// the segment it came from, for end-to-end latency accounting.
type transcriptItem struct {
	Result     repositories.TranscriptResult
	CapturedAt time.Time
}

// ResponseUnit is one synthesizable slice of generated text.
type ResponseUnit struct {
	MessageID   string
	Text        string
	ChunkIndex  int
	TotalChunks int
	IsFinal     bool
	GeneratedAt time.Time
	// FullText is set on the final unit so delivery can estimate the
	// total spoken duration of the generation.
	FullText string
}

// ingestFrame is what the reader hands to the ingestion stage. A flush
// frame marks an explicit recording-stop boundary. The recording gate
// is sampled when the frame is accepted, so audio received while
// recording was on is never retroactively dropped by a later
// stop_recording or teardown.
type ingestFrame struct {
	data      []byte
	flush     bool
	recording bool
}

// Session owns all mutable per-connection state: configuration, stage
// queues, lifecycle flags, and counters. Queue handles are owned
// exclusively by this session's task group and never shared.
type Session struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	mu     sync.RWMutex
	config SessionConfig
	state  SessionState

	recording atomic.Bool
	degraded  atomic.Bool

	chunksReceived          atomic.Uint64
	bytesProcessed          atomic.Uint64
	transcriptionsCompleted atomic.Uint64
	responsesGenerated      atomic.Uint64
	segmentsDropped         atomic.Uint64
	framesDropped           atomic.Uint64
	turnLatencyTotalMs      atomic.Int64

	lastActivity atomic.Int64

	// Single-producer/single-consumer stage queues.
	audioIn     chan ingestFrame
	segments    chan AudioSegment
	transcripts chan transcriptItem
	units       chan ResponseUnit

	ioMu     sync.RWMutex
	ioClosed bool

	closeOnce sync.Once
	done      chan struct{}
}

// QueueDepths bounds the stage queues; bounded queues realize
// backpressure instead of unbounded memory growth.
type QueueDepths struct {
	Raw        int
	Audio      int
	Transcript int
	Response   int
}

// NewSession allocates a session with fresh id, default counters, and
// bounded queues.
func NewSession(ownerID string, config SessionConfig, depths QueueDepths) *Session {
	if depths.Raw <= 0 {
		depths.Raw = 256
	}
	if depths.Audio <= 0 {
		depths.Audio = 64
	}
	if depths.Transcript <= 0 {
		depths.Transcript = 32
	}
	if depths.Response <= 0 {
		depths.Response = 32
	}
	s := &Session{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		CreatedAt:   time.Now(),
		config:      config,
		state:       StateCreated,
		audioIn:     make(chan ingestFrame, depths.Raw),
		segments:    make(chan AudioSegment, depths.Audio),
		transcripts: make(chan transcriptItem, depths.Transcript),
		units:       make(chan ResponseUnit, depths.Response),
		done:        make(chan struct{}),
	}
	s.Touch()
	return s
}

// Config returns a copy of the current configuration.
func (s *Session) Config() SessionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// ApplyPatch merges recognized fields of a partial config and returns
// the result.
func (s *Session) ApplyPatch(patch ConfigPatch) SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.LanguageCode != nil {
		s.config.LanguageCode = *patch.LanguageCode
	}
	if patch.SampleRate != nil {
		s.config.SampleRate = *patch.SampleRate
	}
	if patch.InterimResults != nil {
		s.config.InterimResults = *patch.InterimResults
	}
	if patch.VoiceName != nil {
		s.config.VoiceName = *patch.VoiceName
	}
	if patch.AudioFormat != nil {
		s.config.AudioFormat = *patch.AudioFormat
	}
	if patch.EnhancementLevel != nil {
		s.config.EnhancementLevel = *patch.EnhancementLevel
	}
	if patch.EnableEmotionDetection != nil {
		s.config.EnableEmotionDetection = *patch.EnableEmotionDetection
	}
	if patch.EnableRAG != nil {
		s.config.EnableRAG = *patch.EnableRAG
	}
	return s.config
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// transitionTo advances the lifecycle. Only forward transitions are
// legal; Closing may be entered from any live state.
func (s *Session) transitionTo(target SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch target {
	case StateConfigured:
		if s.state != StateCreated {
			return false
		}
	case StateActive:
		if s.state != StateConfigured {
			return false
		}
	case StateClosing:
		if s.state == StateClosing || s.state == StateClosed {
			return false
		}
	case StateClosed:
		if s.state != StateClosing {
			return false
		}
	default:
		return false
	}
	s.state = target
	return true
}

// SetRecording toggles the ingestion gate. Turning recording on also
// clears degraded mode; it is the manual retry command after repeated
// transcription failures.
func (s *Session) SetRecording(on bool) {
	s.recording.Store(on)
	if on {
		s.degraded.Store(false)
	}
	s.Touch()
}

// IsRecording reports whether ingested audio is forwarded into the
// pipeline.
func (s *Session) IsRecording() bool {
	return s.recording.Load()
}

// Degraded reports whether the session stopped buffering audio after
// repeated transcription failures.
func (s *Session) Degraded() bool {
	return s.degraded.Load()
}

// Touch records inbound activity for idle expiry.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the most recent inbound frame or
// command.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// StatsSnapshot returns the current counters. Counters only increase;
// they are never reset after session creation.
func (s *Session) StatsSnapshot() Stats {
	st := Stats{
		ChunksReceived:          s.chunksReceived.Load(),
		BytesProcessed:          s.bytesProcessed.Load(),
		TranscriptionsCompleted: s.transcriptionsCompleted.Load(),
		ResponsesGenerated:      s.responsesGenerated.Load(),
		SegmentsDropped:         s.segmentsDropped.Load(),
		FramesDropped:           s.framesDropped.Load(),
	}
	if st.ResponsesGenerated > 0 {
		st.AvgTurnLatencyMs = s.turnLatencyTotalMs.Load() / int64(st.ResponsesGenerated)
	}
	return st
}

func (s *Session) recordChunk(n int) {
	s.chunksReceived.Add(1)
	s.bytesProcessed.Add(uint64(n))
	s.Touch()
}

func (s *Session) recordTurn(latency time.Duration) {
	s.turnLatencyTotalMs.Add(latency.Milliseconds())
	s.responsesGenerated.Add(1)
}

// beginClose transitions to Closing and closes the ingestion queue,
// which drains the stage chain downstream. Safe to call more than once.
func (s *Session) beginClose() {
	s.closeOnce.Do(func() {
		s.transitionTo(StateClosing)
		s.recording.Store(false)
		s.ioMu.Lock()
		s.ioClosed = true
		close(s.audioIn)
		s.ioMu.Unlock()
	})
}

// OfferAudio hands a raw audio frame to the ingestion stage. The frame is
// dropped when the queue is saturated so a slow pipeline never stalls the
// connection reader; dropped frames still move the chunk counters and are
// metered separately. Returns ErrSessionClosed after teardown has begun.
func (s *Session) OfferAudio(data []byte) error {
	s.ioMu.RLock()
	defer s.ioMu.RUnlock()
	if s.ioClosed {
		return ErrSessionClosed
	}
	select {
	case s.audioIn <- ingestFrame{data: data, recording: s.recording.Load()}:
		return nil
	default:
		s.recordChunk(len(data))
		s.framesDropped.Add(1)
		return nil
	}
}

// OfferFlush marks a recording boundary in the ingestion queue. Unlike
// audio frames the marker blocks until accepted, since losing it would
// strand a partial segment in the buffer.
func (s *Session) OfferFlush() error {
	s.ioMu.RLock()
	defer s.ioMu.RUnlock()
	if s.ioClosed {
		return ErrSessionClosed
	}
	s.audioIn <- ingestFrame{flush: true}
	return nil
}

// Done is closed once the stage task group has fully exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
