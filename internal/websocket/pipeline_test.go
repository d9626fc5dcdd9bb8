package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/widyatma/lantang/domain/repositories"
	"github.com/widyatma/lantang/usecase"
)

type fakeTranscriber struct {
	mu    sync.Mutex
	calls [][]byte
	fn    func(call int, audio []byte) (repositories.TranscriptResult, error)
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, _ repositories.AudioConfig) (repositories.TranscriptResult, error) {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, append([]byte(nil), audio...))
	f.mu.Unlock()
	return f.fn(call, audio)
}

func (f *fakeTranscriber) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeSynthesizer struct {
	fn func(text string) ([]byte, error)
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string, _ repositories.VoiceConfig) ([]byte, error) {
	return f.fn(text)
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	fn    func(prompt string) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, _ []repositories.ChatMessage) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(prompt)
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func finalResult(text string, confidence float64) repositories.TranscriptResult {
	return repositories.TranscriptResult{
		Text:       text,
		Confidence: confidence,
		IsFinal:    true,
		DecodedAt:  time.Now(),
	}
}

func passthroughSynth(text string) ([]byte, error) {
	return bytes.Repeat([]byte{0xAA}, 40), nil
}

// testTuning keeps the idle flush out of the way so tests control
// segment boundaries explicitly.
func testTuning() Tuning {
	tn := DefaultTuning()
	tn.SegmentIdleFlush = time.Hour
	tn.DeliveryPacing = 0
	tn.DeliveryChunkBytes = 16
	return tn
}

// runPipelineTest drives a pipeline to completion: spawn, drive, close
// the ingestion side, wait for full drain, and return everything that
// reached the write pump.
func runPipelineTest(
	t *testing.T,
	tn Tuning,
	tr repositories.Transcriber,
	syn repositories.Synthesizer,
	gen repositories.ResponseGenerator,
	drive func(s *Session),
) ([]WriteData, *Session) {
	t.Helper()

	session := NewSession("owner-1", DefaultSessionConfig(), tn.queueDepths())
	session.transitionTo(StateConfigured)
	session.transitionTo(StateActive)

	responder := usecase.NewResponder(gen, nil, zap.NewNop(), usecase.ResponderOptions{})
	out := make(chan WriteData, 1024)
	p := newPipeline(session, tn, tr, syn, responder, out, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	drive(session)
	session.beginClose()

	select {
	case <-session.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not drain in time")
	}

	var msgs []WriteData
	for {
		select {
		case m := <-out:
			msgs = append(msgs, m)
		default:
			return msgs, session
		}
	}
}

func decodeControls(t *testing.T, msgs []WriteData) []map[string]any {
	t.Helper()
	var controls []map[string]any
	for _, m := range msgs {
		if m.Type != websocket.TextMessage {
			continue
		}
		var parsed map[string]any
		if err := json.Unmarshal(m.Payload, &parsed); err != nil {
			t.Fatalf("unparseable control message %q: %v", m.Payload, err)
		}
		controls = append(controls, parsed)
	}
	return controls
}

func controlsOfType(controls []map[string]any, typ MessageType) []map[string]any {
	var out []map[string]any
	for _, c := range controls {
		if c["type"] == string(typ) {
			out = append(out, c)
		}
	}
	return out
}

func binaryFrames(msgs []WriteData) [][]byte {
	var out [][]byte
	for _, m := range msgs {
		if m.Type == websocket.BinaryMessage {
			out = append(out, m.Payload)
		}
	}
	return out
}

func TestPipelineFullTurn(t *testing.T) {
	tr := &fakeTranscriber{fn: func(int, []byte) (repositories.TranscriptResult, error) {
		return finalResult("hello there", 0.9), nil
	}}
	syn := &fakeSynthesizer{fn: passthroughSynth}
	gen := &fakeGenerator{fn: func(string) (string, error) {
		return "Hi! Nice to hear from you.", nil
	}}

	frames := [][]byte{
		bytes.Repeat([]byte{0x01}, 10),
		bytes.Repeat([]byte{0x02}, 10),
		bytes.Repeat([]byte{0x03}, 10),
	}
	msgs, session := runPipelineTest(t, testTuning(), tr, syn, gen, func(s *Session) {
		s.SetRecording(true)
		for _, f := range frames {
			if err := s.OfferAudio(f); err != nil {
				t.Fatalf("OfferAudio() error = %v", err)
			}
		}
		if err := s.OfferFlush(); err != nil {
			t.Fatalf("OfferFlush() error = %v", err)
		}
	})

	// The stop boundary must yield exactly one segment holding the
	// frames in arrival order.
	calls := tr.received()
	if len(calls) != 1 {
		t.Fatalf("expected 1 transcription call, got %d", len(calls))
	}
	want := bytes.Join(frames, nil)
	if !bytes.Equal(calls[0], want) {
		t.Errorf("segment must concatenate frames in order: got %d bytes, want %d", len(calls[0]), len(want))
	}

	controls := decodeControls(t, msgs)
	for _, typ := range []MessageType{
		MessageTypeTranscript,
		MessageTypeAIResponse,
		MessageTypeAIResponseChunk,
		MessageTypeVoiceResponseReady,
		MessageTypeResponseComplete,
	} {
		if len(controlsOfType(controls, typ)) == 0 {
			t.Errorf("expected at least one %q message", typ)
		}
	}
	if len(binaryFrames(msgs)) == 0 {
		t.Error("expected framed audio on the wire")
	}

	st := session.StatsSnapshot()
	if st.ChunksReceived != 3 || st.BytesProcessed != 30 {
		t.Errorf("expected 3 chunks / 30 bytes, got %d / %d", st.ChunksReceived, st.BytesProcessed)
	}
	if st.TranscriptionsCompleted != 1 {
		t.Errorf("expected 1 completed transcription, got %d", st.TranscriptionsCompleted)
	}
	if st.ResponsesGenerated != 1 {
		t.Errorf("expected 1 generated response, got %d", st.ResponsesGenerated)
	}
}

func TestIngestGateClosedCountsButDropsAudio(t *testing.T) {
	tr := &fakeTranscriber{fn: func(int, []byte) (repositories.TranscriptResult, error) {
		return finalResult("should never happen", 0.9), nil
	}}
	gen := &fakeGenerator{fn: func(string) (string, error) { return "ok", nil }}

	msgs, session := runPipelineTest(t, testTuning(), tr, &fakeSynthesizer{fn: passthroughSynth}, gen, func(s *Session) {
		// Recording never started.
		for i := 0; i < 5; i++ {
			if err := s.OfferAudio(bytes.Repeat([]byte{0xEE}, 20)); err != nil {
				t.Fatalf("OfferAudio() error = %v", err)
			}
		}
		if err := s.OfferFlush(); err != nil {
			t.Fatalf("OfferFlush() error = %v", err)
		}
	})

	if calls := tr.received(); len(calls) != 0 {
		t.Fatalf("gated audio must never reach the transcriber, got %d calls", len(calls))
	}
	if got := controlsOfType(decodeControls(t, msgs), MessageTypeTranscript); len(got) != 0 {
		t.Errorf("expected no transcripts, got %d", len(got))
	}

	st := session.StatsSnapshot()
	if st.ChunksReceived != 5 || st.BytesProcessed != 100 {
		t.Errorf("gated audio still counts: got %d chunks / %d bytes", st.ChunksReceived, st.BytesProcessed)
	}
}

func TestIngestThresholdFlush(t *testing.T) {
	tn := testTuning()
	tn.SegmentBytes = 16

	tr := &fakeTranscriber{fn: func(int, []byte) (repositories.TranscriptResult, error) {
		return finalResult("part", 0.9), nil
	}}
	gen := &fakeGenerator{fn: func(string) (string, error) { return "ok", nil }}

	_, _ = runPipelineTest(t, tn, tr, &fakeSynthesizer{fn: passthroughSynth}, gen, func(s *Session) {
		s.SetRecording(true)
		// Each frame crosses the byte threshold on its own.
		s.OfferAudio(bytes.Repeat([]byte{0x01}, 20))
		s.OfferAudio(bytes.Repeat([]byte{0x02}, 20))
	})

	calls := tr.received()
	if len(calls) != 2 {
		t.Fatalf("expected 2 threshold-flushed segments, got %d", len(calls))
	}
	if len(calls[0]) != 20 || len(calls[1]) != 20 {
		t.Errorf("expected 20-byte segments, got %d and %d", len(calls[0]), len(calls[1]))
	}
}

func TestStopRecordingKeepsBufferedAudio(t *testing.T) {
	tr := &fakeTranscriber{fn: func(int, []byte) (repositories.TranscriptResult, error) {
		return finalResult("buffered speech", 0.9), nil
	}}
	gen := &fakeGenerator{fn: func(string) (string, error) { return "ok", nil }}

	frames := [][]byte{
		bytes.Repeat([]byte{0x01}, 10),
		bytes.Repeat([]byte{0x02}, 10),
		bytes.Repeat([]byte{0x03}, 10),
	}
	_, _ = runPipelineTest(t, testTuning(), tr, &fakeSynthesizer{fn: passthroughSynth}, gen, func(s *Session) {
		s.SetRecording(true)
		for _, f := range frames {
			s.OfferAudio(f)
		}
		// The gate closes before ingestion may have drained the queue;
		// audio accepted while recording was on must still be flushed.
		s.SetRecording(false)
		s.OfferFlush()
		// Anything offered after the stop stays out of the segment.
		s.OfferAudio(bytes.Repeat([]byte{0xFF}, 10))
		s.OfferFlush()
	})

	calls := tr.received()
	if len(calls) != 1 {
		t.Fatalf("expected the buffered audio as 1 segment, got %d", len(calls))
	}
	want := bytes.Join(frames, nil)
	if !bytes.Equal(calls[0], want) {
		t.Errorf("stop boundary lost audio: got %d bytes, want %d", len(calls[0]), len(want))
	}
}

func TestTranscribeConfidenceGate(t *testing.T) {
	tr := &fakeTranscriber{fn: func(call int, _ []byte) (repositories.TranscriptResult, error) {
		if call == 0 {
			return finalResult("um", 0.4), nil
		}
		return finalResult("hello", 0.9), nil
	}}
	gen := &fakeGenerator{fn: func(string) (string, error) { return "hi", nil }}

	msgs, session := runPipelineTest(t, testTuning(), tr, &fakeSynthesizer{fn: passthroughSynth}, gen, func(s *Session) {
		s.SetRecording(true)
		s.OfferAudio(bytes.Repeat([]byte{0x01}, 10))
		s.OfferFlush()
		s.OfferAudio(bytes.Repeat([]byte{0x02}, 10))
		s.OfferFlush()
	})

	if got := gen.callCount(); got != 1 {
		t.Errorf("low-confidence transcript must not reach generation, got %d calls", got)
	}

	transcripts := controlsOfType(decodeControls(t, msgs), MessageTypeTranscript)
	if len(transcripts) != 1 {
		t.Fatalf("expected 1 transcript message, got %d", len(transcripts))
	}
	if transcripts[0]["transcript"] != "hello" {
		t.Errorf("expected surviving transcript 'hello', got %v", transcripts[0]["transcript"])
	}

	// Both finals count as completed, even the one below the floor.
	if st := session.StatsSnapshot(); st.TranscriptionsCompleted != 2 {
		t.Errorf("expected 2 completed transcriptions, got %d", st.TranscriptionsCompleted)
	}
}

func TestDegradedModeAfterRepeatedFailures(t *testing.T) {
	tr := &fakeTranscriber{fn: func(int, []byte) (repositories.TranscriptResult, error) {
		// Slow failure keeps ingestion comfortably ahead, so all three
		// segments are queued before degradation can gate them.
		time.Sleep(10 * time.Millisecond)
		return repositories.TranscriptResult{}, errors.New("recognizer unavailable")
	}}
	gen := &fakeGenerator{fn: func(string) (string, error) { return "ok", nil }}

	msgs, session := runPipelineTest(t, testTuning(), tr, &fakeSynthesizer{fn: passthroughSynth}, gen, func(s *Session) {
		s.SetRecording(true)
		for i := 0; i < degradedFailureThreshold; i++ {
			s.OfferAudio(bytes.Repeat([]byte{byte(i + 1)}, 10))
			s.OfferFlush()
		}
	})

	if !session.Degraded() {
		t.Error("session must be degraded after repeated transcription failures")
	}

	controls := decodeControls(t, msgs)
	var failed, degraded int
	for _, c := range controlsOfType(controls, MessageTypeError) {
		switch c["code"] {
		case "transcription_failed":
			failed++
		case "degraded":
			degraded++
		}
	}
	if failed != degradedFailureThreshold {
		t.Errorf("expected %d failure notices, got %d", degradedFailureThreshold, failed)
	}
	if degraded != 1 {
		t.Errorf("expected exactly one degraded notice, got %d", degraded)
	}
}

func TestRespondFallbackOnGeneratorError(t *testing.T) {
	tr := &fakeTranscriber{fn: func(int, []byte) (repositories.TranscriptResult, error) {
		return finalResult("tell me a story", 0.9), nil
	}}
	gen := &fakeGenerator{fn: func(string) (string, error) {
		return "", errors.New("model overloaded")
	}}

	msgs, _ := runPipelineTest(t, testTuning(), tr, &fakeSynthesizer{fn: passthroughSynth}, gen, func(s *Session) {
		s.SetRecording(true)
		s.OfferAudio(bytes.Repeat([]byte{0x01}, 10))
		s.OfferFlush()
	})

	controls := decodeControls(t, msgs)
	var generationFailed bool
	for _, c := range controlsOfType(controls, MessageTypeError) {
		if c["code"] == "generation_failed" {
			generationFailed = true
		}
	}
	if !generationFailed {
		t.Error("expected a generation_failed notice")
	}

	// The fallback still flows through the voice path.
	responses := controlsOfType(controls, MessageTypeAIResponse)
	if len(responses) != 1 {
		t.Fatalf("expected 1 ai_response, got %d", len(responses))
	}
	if responses[0]["text"] == "" {
		t.Error("fallback response text must not be empty")
	}
	if len(binaryFrames(msgs)) == 0 {
		t.Error("fallback must still be synthesized and delivered")
	}
}

func TestDeliverContinuesAfterUnitFailure(t *testing.T) {
	tr := &fakeTranscriber{fn: func(int, []byte) (repositories.TranscriptResult, error) {
		return finalResult("go on", 0.9), nil
	}}
	gen := &fakeGenerator{fn: func(string) (string, error) {
		return "One. Two. Three.", nil
	}}
	syn := &fakeSynthesizer{fn: func(text string) ([]byte, error) {
		if text == "Two." {
			return nil, fmt.Errorf("voice service hiccup")
		}
		return bytes.Repeat([]byte{0xBB}, 40), nil
	}}

	msgs, _ := runPipelineTest(t, testTuning(), tr, syn, gen, func(s *Session) {
		s.SetRecording(true)
		s.OfferAudio(bytes.Repeat([]byte{0x01}, 10))
		s.OfferFlush()
	})

	controls := decodeControls(t, msgs)

	audioErrors := controlsOfType(controls, MessageTypeAudioResponseError)
	if len(audioErrors) != 1 {
		t.Fatalf("expected 1 audio_response_error, got %d", len(audioErrors))
	}
	if idx := audioErrors[0]["chunk_index"].(float64); idx != 1 {
		t.Errorf("expected failure on chunk 1, got %v", idx)
	}

	ready := controlsOfType(controls, MessageTypeVoiceResponseReady)
	if len(ready) != 2 {
		t.Errorf("surviving units must still be delivered, got %d ready notices", len(ready))
	}

	if complete := controlsOfType(controls, MessageTypeResponseComplete); len(complete) != 1 {
		t.Errorf("expected exactly one response_complete, got %d", len(complete))
	}

	// 40 audio bytes at a 16-byte frame cap is 3 frames per unit; two
	// units survived.
	if frames := binaryFrames(msgs); len(frames) != 6 {
		t.Errorf("expected 6 binary frames, got %d", len(frames))
	}
}

func TestPipelineDropsOldestWhenBacklogged(t *testing.T) {
	tn := testTuning()
	tn.AudioQueueDepth = 2

	release := make(chan struct{})
	var once sync.Once
	tr := &fakeTranscriber{fn: func(int, []byte) (repositories.TranscriptResult, error) {
		// First call parks until the backlog has been built.
		once.Do(func() { <-release })
		return finalResult("late", 0.9), nil
	}}
	gen := &fakeGenerator{fn: func(string) (string, error) { return "ok", nil }}

	_, session := runPipelineTest(t, tn, tr, &fakeSynthesizer{fn: passthroughSynth}, gen, func(s *Session) {
		s.SetRecording(true)
		// Five segments against a depth-2 queue and a stalled consumer.
		for i := 0; i < 5; i++ {
			s.OfferAudio(bytes.Repeat([]byte{byte(i + 1)}, 10))
			s.OfferFlush()
		}
		// Give ingest time to build and shed the backlog before the
		// consumer wakes.
		time.Sleep(100 * time.Millisecond)
		close(release)
	})

	if st := session.StatsSnapshot(); st.SegmentsDropped == 0 {
		t.Error("expected dropped segments under backlog")
	}
}
