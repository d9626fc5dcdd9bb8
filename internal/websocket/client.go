package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/widyatma/lantang/domain/repositories"
	"github.com/widyatma/lantang/internal/observability"
	"github.com/widyatma/lantang/usecase"
)

const (
	// writeWait is the deadline for a single outbound frame write.
	writeWait = 10 * time.Second

	// maxMessageSize caps inbound frames. Audio arrives in small raw
	// PCM frames, so anything near this limit is a misbehaving client.
	maxMessageSize = 512 * 1024

	sendQueueDepth = 256
)

// NewUpgrader builds the upgrader promoting HTTP requests to WebSocket
// connections. Unless allowAnyOrigin is set, browser connections are
// only accepted from the same origin; non-browser clients that omit the
// Origin header pass through.
func NewUpgrader(allowAnyOrigin bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAnyOrigin {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false
			}
			return strings.EqualFold(u.Host, r.Host)
		},
	}
}

// frameLabel names a transport frame for the message counters.
func frameLabel(msgType int) string {
	if IsBinaryFrame(msgType) {
		return "binary"
	}
	return "text"
}

// WriteData is one outbound frame queued for the write pump.
type WriteData struct {
	Type    int
	Payload []byte
}

// Deps bundles the collaborators shared by every connection.
type Deps struct {
	Registry    *Registry
	Transcriber repositories.Transcriber
	Synthesizer repositories.Synthesizer
	Responder   *usecase.Responder
	Tuning      Tuning
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// Client is one WebSocket connection and its session, if a session has
// been started. The read pump is the only goroutine that touches
// inbound state; the write pump is the only one that writes the socket.
type Client struct {
	deps    Deps
	conn    *websocket.Conn
	send    chan WriteData
	ownerID string
	logger  *zap.Logger

	mu        sync.Mutex
	session   *Session
	cancel    context.CancelFunc
	handshake *time.Timer
}

// ServeConn takes ownership of an upgraded connection and runs it to
// completion. The connection is closed if no start_session command
// arrives within the handshake window.
func ServeConn(deps Deps, conn *websocket.Conn, ownerID string) {
	c := &Client{
		deps:    deps,
		conn:    conn,
		send:    make(chan WriteData, sendQueueDepth),
		ownerID: ownerID,
		logger:  deps.Logger.With(zap.String("ownerID", ownerID)),
	}
	c.handshake = time.AfterFunc(deps.Tuning.HandshakeTimeout, c.handshakeExpired)

	go c.writePump()
	go c.readPump()
}

func (c *Client) handshakeExpired() {
	c.mu.Lock()
	started := c.session != nil
	c.mu.Unlock()
	if started {
		return
	}

	c.logger.Warn("closing connection", zap.String("reason", CloseReasonHandshakeTimeout))
	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, CloseReasonHandshakeTimeout),
		deadline)
	c.conn.Close()
}

func (c *Client) readPump() {
	defer c.teardown()

	pongWait := c.deps.Tuning.IdleTimeout
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		if c.deps.Metrics != nil {
			c.deps.Metrics.WSMessages.WithLabelValues("in", frameLabel(msgType)).Inc()
		}

		if IsBinaryFrame(msgType) {
			c.handleBinary(payload)
			continue
		}

		ctrl, err := DecodeControl(payload)
		if err != nil {
			c.reply(NewErrorMessage("decode_error", err.Error()))
			continue
		}
		c.handleControl(ctrl)
	}
}

func (c *Client) writePump() {
	pingPeriod := c.deps.Tuning.IdleTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.Type, msg.Payload); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}
			if c.deps.Metrics != nil {
				c.deps.Metrics.WSMessages.WithLabelValues("out", frameLabel(msg.Type)).Inc()
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleBinary feeds one raw audio frame into the ingestion queue.
// Audio that arrives before start_session has nowhere to go and is
// dropped with a notice.
func (c *Client) handleBinary(payload []byte) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		c.reply(NewErrorMessage("no_session", "audio received before start_session"))
		return
	}
	session.Touch()
	if err := session.OfferAudio(payload); err != nil {
		c.logger.Debug("audio frame rejected", zap.Error(err))
	}
}

func (c *Client) handleControl(ctrl Control) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		session.Touch()
	}

	switch msg := ctrl.(type) {
	case StartSession:
		c.handleStartSession(msg)
	case StartRecording:
		if session == nil {
			c.reply(NewErrorMessage("no_session", "no active session"))
			return
		}
		session.SetRecording(true)
		c.reply(RecordingMessage{
			Type:      MessageTypeRecordingStarted,
			SessionID: session.ID,
			Timestamp: nowStamp(),
		})
	case StopRecording:
		if session == nil {
			c.reply(NewErrorMessage("no_session", "no active session"))
			return
		}
		session.SetRecording(false)
		if err := session.OfferFlush(); err != nil {
			c.logger.Debug("flush rejected", zap.Error(err))
		}
		c.reply(RecordingMessage{
			Type:      MessageTypeRecordingStopped,
			SessionID: session.ID,
			Timestamp: nowStamp(),
		})
	case UpdateConfig:
		if session == nil {
			c.reply(NewErrorMessage("no_session", "no active session"))
			return
		}
		merged := session.ApplyPatch(msg.Patch)
		c.reply(ConfigUpdatedMessage{
			Type:      MessageTypeConfigUpdated,
			SessionID: session.ID,
			Config:    merged,
		})
	case GetStats:
		if session == nil {
			c.reply(NewErrorMessage("no_session", "no active session"))
			return
		}
		c.reply(SessionStatsMessage{
			Type:      MessageTypeSessionStats,
			SessionID: session.ID,
			Stats:     session.StatsSnapshot(),
		})
	case Ping:
		c.reply(NewPongMessage())
	case Unknown:
		c.reply(NewErrorMessage("unsupported_type", "unsupported message type: "+msg.Type))
	}
}

func (c *Client) handleStartSession(msg StartSession) {
	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		c.reply(NewErrorMessage("session_exists", ErrSessionExists.Error()))
		return
	}

	config := DefaultSessionConfig()
	if msg.LanguageCode != "" {
		config.LanguageCode = msg.LanguageCode
	}
	if msg.SampleRate > 0 {
		config.SampleRate = msg.SampleRate
	}
	if msg.VoiceName != "" {
		config.VoiceName = msg.VoiceName
	}
	if msg.AudioFormat != "" {
		config.AudioFormat = msg.AudioFormat
	}
	config.InterimResults = msg.InterimResults
	config.EnhancementLevel = msg.EnhancementLevel
	config.EnableEmotionDetection = msg.EnableEmotionDetection
	config.EnableRAG = msg.EnableRAG

	session := NewSession(c.ownerID, config, c.deps.Tuning.queueDepths())
	session.transitionTo(StateConfigured)

	ctx, cancel := context.WithCancel(context.Background())
	c.session = session
	c.cancel = cancel
	c.mu.Unlock()

	c.handshake.Stop()
	c.deps.Registry.Add(session)
	session.transitionTo(StateActive)

	pipeline := newPipeline(session, c.deps.Tuning,
		c.deps.Transcriber, c.deps.Synthesizer, c.deps.Responder,
		c.send, c.deps.Logger, c.deps.Metrics)
	go pipeline.Run(ctx)

	c.logger.Info("session started",
		zap.String("sessionID", session.ID),
		zap.String("language", config.LanguageCode),
		zap.Int("sampleRate", config.SampleRate))

	c.reply(SessionStartedMessage{
		Type:      MessageTypeSessionStarted,
		SessionID: session.ID,
		Config:    config,
		Timestamp: nowStamp(),
	})
}

// reply queues a control message for the write pump without blocking
// the read loop. A saturated queue drops the reply.
func (c *Client) reply(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal reply", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("send queue full, dropping reply")
	}
}

// teardown runs when the read pump exits: remove the session so the
// stage chain drains, give it the drain grace to flush in-flight work,
// then cancel whatever is left and release the write pump.
func (c *Client) teardown() {
	c.handshake.Stop()

	c.mu.Lock()
	session, cancel := c.session, c.cancel
	c.mu.Unlock()

	if session != nil {
		c.deps.Registry.Remove(session.ID)
		select {
		case <-session.Done():
		case <-time.After(c.deps.Tuning.DrainGrace):
			c.logger.Warn("drain grace expired, cancelling pipeline",
				zap.String("sessionID", session.ID))
			cancel()
			<-session.Done()
		}
		cancel()
	}

	close(c.send)
	c.conn.Close()
	c.logger.Debug("connection closed")
}
