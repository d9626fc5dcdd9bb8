package websocket

import (
	"encoding/json"
	"time"
)

// MessageType defines the type of WebSocket control message
type MessageType string

// Inbound control types
const (
	MessageTypeStartSession   MessageType = "start_session"
	MessageTypeStartRecording MessageType = "start_recording"
	MessageTypeStopRecording  MessageType = "stop_recording"
	MessageTypeUpdateConfig   MessageType = "update_config"
	MessageTypeGetStats       MessageType = "get_stats"
	MessageTypePing           MessageType = "ping"
)

// Outbound control types
const (
	MessageTypeSessionStarted     MessageType = "session_started"
	MessageTypeRecordingStarted   MessageType = "recording_started"
	MessageTypeRecordingStopped   MessageType = "recording_stopped"
	MessageTypeConfigUpdated      MessageType = "config_updated"
	MessageTypeSessionStats       MessageType = "session_stats"
	MessageTypePong               MessageType = "pong"
	MessageTypeTranscript         MessageType = "transcript"
	MessageTypeAIResponse         MessageType = "ai_response"
	MessageTypeAIResponseChunk    MessageType = "ai_response_chunk"
	MessageTypeVoiceResponseReady MessageType = "voice_response_ready"
	MessageTypeAudioResponseError MessageType = "audio_response_error"
	MessageTypeResponseComplete   MessageType = "response_complete"
	MessageTypeError              MessageType = "error"
)

// Control is the closed set of inbound command variants. Every value
// returned by DecodeControl is one of the structs below, so command
// handling is an exhaustive type switch rather than string dispatch.
type Control interface {
	controlType() MessageType
}

// StartSession opens a session on the connection
type StartSession struct {
	LanguageCode           string `json:"language_code"`
	SampleRate             int    `json:"sample_rate"`
	VoiceName              string `json:"voice_name"`
	AudioFormat            string `json:"audio_format"`
	InterimResults         bool   `json:"interim_results"`
	EnhancementLevel       int    `json:"enhancement_level"`
	EnableEmotionDetection bool   `json:"enable_emotion_detection"`
	EnableRAG              bool   `json:"enable_rag"`
}

// StartRecording opens the ingestion gate
type StartRecording struct{}

// StopRecording closes the ingestion gate and flushes buffered audio
type StopRecording struct{}

// UpdateConfig merges a partial configuration into the session
type UpdateConfig struct {
	Patch ConfigPatch
}

// GetStats requests a session counters snapshot
type GetStats struct{}

// Ping requests a server timestamp reply
type Ping struct{}

// Unknown carries an unrecognized command type. Decoding never fails on
// an unknown type; the caller replies with an unsupported notice instead.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (StartSession) controlType() MessageType   { return MessageTypeStartSession }
func (StartRecording) controlType() MessageType { return MessageTypeStartRecording }
func (StopRecording) controlType() MessageType  { return MessageTypeStopRecording }
func (UpdateConfig) controlType() MessageType   { return MessageTypeUpdateConfig }
func (GetStats) controlType() MessageType       { return MessageTypeGetStats }
func (Ping) controlType() MessageType           { return MessageTypePing }
func (u Unknown) controlType() MessageType      { return MessageType(u.Type) }

// SessionStartedMessage acknowledges session creation
type SessionStartedMessage struct {
	Type      MessageType   `json:"type"`
	SessionID string        `json:"session_id"`
	Config    SessionConfig `json:"config"`
	Timestamp string        `json:"timestamp"`
}

// RecordingMessage acknowledges a recording gate toggle
type RecordingMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Timestamp string      `json:"timestamp"`
}

// ConfigUpdatedMessage returns the merged configuration
type ConfigUpdatedMessage struct {
	Type      MessageType   `json:"type"`
	SessionID string        `json:"session_id"`
	Config    SessionConfig `json:"config"`
}

// SessionStatsMessage carries a counters snapshot
type SessionStatsMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Stats     Stats       `json:"stats"`
}

// PongMessage replies to a ping with the server timestamp
type PongMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

// TranscriptMessage is emitted per recognized segment
type TranscriptMessage struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	Transcript string      `json:"transcript"`
	Confidence float64     `json:"confidence"`
	IsFinal    bool        `json:"is_final"`
	Timestamp  string      `json:"timestamp"`
}

// AIResponseMessage carries the full generated reply text
type AIResponseMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	MessageID string      `json:"message_id"`
	Text      string      `json:"text"`
	Emotion   string      `json:"emotion,omitempty"`
}

// AIResponseChunkMessage carries one synthesizable slice of the reply
type AIResponseChunkMessage struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	MessageID   string      `json:"message_id"`
	Text        string      `json:"text"`
	ChunkIndex  int         `json:"chunk_index"`
	TotalChunks int         `json:"total_chunks"`
	IsFinal     bool        `json:"is_final"`
}

// VoiceResponseReadyMessage reports one synthesis unit completed
type VoiceResponseReadyMessage struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	MessageID  string      `json:"message_id"`
	ChunkIndex int         `json:"chunk_index"`
	DurationMs int64       `json:"duration_ms"`
}

// AudioResponseErrorMessage reports one synthesis unit failure
type AudioResponseErrorMessage struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	MessageID  string      `json:"message_id"`
	ChunkIndex int         `json:"chunk_index"`
	Error      string      `json:"error"`
}

// ResponseCompleteMessage marks the end of one generation's delivery,
// with a spoken duration estimated from word count and speaking rate.
type ResponseCompleteMessage struct {
	Type                MessageType `json:"type"`
	SessionID           string      `json:"session_id"`
	MessageID           string      `json:"message_id"`
	EstimatedDurationMs int64       `json:"estimated_duration_ms"`
}

// ErrorMessage reports a non-fatal per-item failure
type ErrorMessage struct {
	Type  MessageType `json:"type"`
	Code  string      `json:"code,omitempty"`
	Error string      `json:"error"`
}

// NewErrorMessage creates a standardized error message
func NewErrorMessage(code, detail string) ErrorMessage {
	return ErrorMessage{Type: MessageTypeError, Code: code, Error: detail}
}

// NewPongMessage creates a pong reply stamped with the server time
func NewPongMessage() PongMessage {
	return PongMessage{Type: MessageTypePong, Timestamp: time.Now().Format(time.RFC3339)}
}

func nowStamp() string {
	return time.Now().Format(time.RFC3339)
}
