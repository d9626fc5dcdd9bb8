package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/widyatma/lantang/domain/entities"
	"github.com/widyatma/lantang/domain/repositories"
)

const (
	defaultMaxUnitWords   = 40
	defaultContextLimit   = 6
	defaultContextTimeout = 350 * time.Millisecond
	defaultPersistTimeout = 2 * time.Second

	defaultSystemStyle = "You are a warm, concise voice companion. Answer in short spoken sentences."

	fallbackText = "I'm sorry, I had trouble coming up with a reply just now. Could you say that again?"
)

// ResponderOptions tunes prompt assembly and persistence behavior.
type ResponderOptions struct {
	MaxUnitWords   int
	ContextLimit   int
	ContextTimeout time.Duration
	PersistTimeout time.Duration
	SystemStyle    string
}

// Responder turns a finalized transcript into synthesizable response
// units: optional emotion/context enrichment, one ResponseGenerator
// call, sanitization, and sentence segmentation. A generation failure
// yields a spoken apology rather than silence.
type Responder struct {
	generator repositories.ResponseGenerator
	store     repositories.SessionStore
	logger    *zap.Logger
	opts      ResponderOptions
}

// NewResponder creates a responder. store may be nil; context retrieval
// and persistence are then skipped.
func NewResponder(
	generator repositories.ResponseGenerator,
	store repositories.SessionStore,
	logger *zap.Logger,
	opts ResponderOptions,
) *Responder {
	if opts.MaxUnitWords <= 0 {
		opts.MaxUnitWords = defaultMaxUnitWords
	}
	if opts.ContextLimit <= 0 {
		opts.ContextLimit = defaultContextLimit
	}
	if opts.ContextTimeout <= 0 {
		opts.ContextTimeout = defaultContextTimeout
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	if opts.SystemStyle == "" {
		opts.SystemStyle = defaultSystemStyle
	}
	return &Responder{
		generator: generator,
		store:     store,
		logger:    logger,
		opts:      opts,
	}
}

// Request describes one finalized transcript to answer.
type Request struct {
	OwnerID    string
	SessionID  string
	Transcript string
	Confidence float64
	CapturedAt time.Time

	WithEmotion bool
	WithContext bool
}

// Result is the generated reply sliced into synthesizable units.
type Result struct {
	Text     string
	Units    []string
	Emotion  string
	Fallback bool
	Latency  time.Duration
}

// Respond never fails: a ResponseGenerator error substitutes the
// fallback apology so the voice pipeline always produces something
// audible.
func (r *Responder) Respond(ctx context.Context, req Request) Result {
	res := Result{}

	if req.WithEmotion {
		res.Emotion = ClassifyEmotion(req.Transcript)
	}

	var history []repositories.ChatMessage
	if req.WithContext {
		history = r.recentHistory(ctx, req.OwnerID)
	}

	prompt := r.buildPrompt(req.Transcript, res.Emotion)
	text, err := r.generator.Generate(ctx, prompt, history)
	if err != nil {
		r.logger.Error("response generation failed",
			zap.String("sessionID", req.SessionID),
			zap.Error(err))
		res.Text = fallbackText
		res.Fallback = true
	} else {
		res.Text = SanitizeSpeechText(text)
		if res.Text == "" {
			res.Text = fallbackText
			res.Fallback = true
		}
	}

	res.Units = SplitUnits(res.Text, r.opts.MaxUnitWords)
	if len(res.Units) == 0 {
		res.Units = []string{res.Text}
	}
	if !req.CapturedAt.IsZero() {
		res.Latency = time.Since(req.CapturedAt)
	}

	if !res.Fallback {
		r.persistExchange(req, res)
	}
	return res
}

// recentHistory fetches the owner's latest exchanges under a short
// timeout. A slow or failing store only costs the enrichment, never
// the turn.
func (r *Responder) recentHistory(ctx context.Context, ownerID string) []repositories.ChatMessage {
	if r.store == nil || ownerID == "" {
		return nil
	}
	fetchCtx, cancel := context.WithTimeout(ctx, r.opts.ContextTimeout)
	defer cancel()

	exchanges, err := r.store.RecentExchanges(fetchCtx, ownerID, r.opts.ContextLimit)
	if err != nil {
		r.logger.Warn("context retrieval failed", zap.Error(err))
		return nil
	}

	// Store returns newest first; the model wants oldest first.
	history := make([]repositories.ChatMessage, 0, len(exchanges)*2)
	for i := len(exchanges) - 1; i >= 0; i-- {
		ex := exchanges[i]
		history = append(history,
			repositories.ChatMessage{Role: repositories.UserRole, Content: ex.Transcript},
			repositories.ChatMessage{Role: repositories.AssistantRole, Content: ex.Response},
		)
	}
	return history
}

func (r *Responder) buildPrompt(transcript, emotion string) string {
	var b strings.Builder
	b.WriteString(r.opts.SystemStyle)
	if emotion != "" && emotion != EmotionNeutral {
		fmt.Fprintf(&b, " The speaker sounds %s; acknowledge that gently.", emotion)
	}
	b.WriteString("\n\nUser said: ")
	b.WriteString(transcript)
	return b.String()
}

// persistExchange saves the turn fire-and-forget; a failed save never
// blocks the live stream.
func (r *Responder) persistExchange(req Request, res Result) {
	if r.store == nil {
		return
	}
	exchange := &entities.Exchange{
		OwnerID:    req.OwnerID,
		SessionID:  req.SessionID,
		Transcript: req.Transcript,
		Confidence: req.Confidence,
		Response:   res.Text,
		Emotion:    res.Emotion,
		LatencyMs:  res.Latency.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.PersistTimeout)
		defer cancel()
		if err := r.store.SaveExchange(ctx, exchange); err != nil {
			r.logger.Warn("failed to persist exchange",
				zap.String("sessionID", req.SessionID),
				zap.Error(err))
		}
	}()
}
