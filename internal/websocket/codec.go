package websocket

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// Binary audio-response frame layout (little-endian):
//
//	[1 byte]  frame type (0x01 = audio chunk)
//	[4 bytes] length of message-id string (N)
//	[N bytes] message-id (UTF-8)
//	[4 bytes] chunk index (0-based)
//	[4 bytes] total chunk count
//	[...]     raw audio payload
const (
	FrameTypeAudioChunk byte = 0x01

	audioFrameHeaderLen = 1 + 4 + 4 + 4
)

// DecodeControl parses a text frame into one of the Control variants.
// The envelope requires a string "type" field; the command payload may
// sit under "data" or flat on the envelope itself. Unrecognized types
// decode into Unknown rather than failing, so callers can answer with
// an unsupported notice instead of dropping the connection.
func DecodeControl(raw []byte) (Control, error) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type field", ErrDecode)
	}

	payload := []byte(env.Data)
	if len(payload) == 0 || string(payload) == "null" {
		payload = raw
	}

	switch MessageType(env.Type) {
	case MessageTypeStartSession:
		var msg StartSession
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("%w: invalid start_session payload: %v", ErrDecode, err)
		}
		return msg, nil
	case MessageTypeStartRecording:
		return StartRecording{}, nil
	case MessageTypeStopRecording:
		return StopRecording{}, nil
	case MessageTypeUpdateConfig:
		var patch ConfigPatch
		if err := json.Unmarshal(payload, &patch); err != nil {
			return nil, fmt.Errorf("%w: invalid update_config payload: %v", ErrDecode, err)
		}
		return UpdateConfig{Patch: patch}, nil
	case MessageTypeGetStats:
		return GetStats{}, nil
	case MessageTypePing:
		return Ping{}, nil
	default:
		return Unknown{Type: env.Type, Raw: append([]byte(nil), raw...)}, nil
	}
}

// EncodeAudioChunk produces one binary audio-response frame. Pure
// function; the layout must stay bit-exact for compatible clients.
func EncodeAudioChunk(messageID string, chunkIndex, totalChunks uint32, payload []byte) []byte {
	id := []byte(messageID)
	frame := make([]byte, 0, audioFrameHeaderLen+len(id)+len(payload))

	frame = append(frame, FrameTypeAudioChunk)
	frame = binary.LittleEndian.AppendUint32(frame, uint32(len(id)))
	frame = append(frame, id...)
	frame = binary.LittleEndian.AppendUint32(frame, chunkIndex)
	frame = binary.LittleEndian.AppendUint32(frame, totalChunks)
	frame = append(frame, payload...)
	return frame
}

// DecodeAudioChunk parses a binary audio-response frame back into its
// parts. Inverse of EncodeAudioChunk.
func DecodeAudioChunk(frame []byte) (messageID string, chunkIndex, totalChunks uint32, payload []byte, err error) {
	if len(frame) < audioFrameHeaderLen {
		return "", 0, 0, nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrDecode, len(frame))
	}
	if frame[0] != FrameTypeAudioChunk {
		return "", 0, 0, nil, fmt.Errorf("%w: unexpected frame type 0x%02x", ErrDecode, frame[0])
	}

	// Compare in uint64: a hostile id length near MaxUint32 would wrap
	// a 32-bit sum and defeat the truncation check.
	idLen := binary.LittleEndian.Uint32(frame[1:5])
	if uint64(len(frame)) < uint64(audioFrameHeaderLen)+uint64(idLen) {
		return "", 0, 0, nil, fmt.Errorf("%w: truncated message id", ErrDecode)
	}

	off := 5
	messageID = string(frame[off : off+int(idLen)])
	off += int(idLen)
	chunkIndex = binary.LittleEndian.Uint32(frame[off : off+4])
	totalChunks = binary.LittleEndian.Uint32(frame[off+4 : off+8])
	payload = frame[off+8:]
	return messageID, chunkIndex, totalChunks, payload, nil
}

// IsBinaryFrame distinguishes binary audio frames from text control
// frames at the transport layer.
func IsBinaryFrame(wsMessageType int) bool {
	return wsMessageType == websocket.BinaryMessage
}
