package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"asistente-tienda/internal/domain/model"
)

// Outbound frame types.
const (
	FrameChatOpened = "chat_opened"
	FrameBot        = "bot"
	FrameWarning    = "warning"
	FrameError      = "error"
)

const internalMessage = "internal"

type textFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// botFrame always carries a recommendations array, empty when there are none.
type botFrame struct {
	Type            string                 `json:"type"`
	Message         string                 `json:"message"`
	Recommendations []model.Recommendation `json:"recommendations"`
	Timestamp       string                 `json:"timestamp"`
}

func newBotFrame(text string, recs []model.Recommendation, at time.Time) botFrame {
	if recs == nil {
		recs = []model.Recommendation{}
	}
	return botFrame{
		Type:            FrameBot,
		Message:         text,
		Recommendations: recs,
		Timestamp:       at.UTC().Format(time.RFC3339Nano),
	}
}

// Inbound decode failures, each answered with its own warning.
var (
	errBinaryFrame    = errors.New("binary frame")
	errMalformedFrame = errors.New("malformed frame")
)

// inboundMessage is the tagged-object form of an utterance.
type inboundMessage struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

// decodeInbound normalizes a websocket message into utterance text. Frames
// that start with '{' must be {"type":"message","text":"..."}; anything
// else is the utterance itself. Validation of the text happens later.
func decodeInbound(messageType int, data []byte) (string, error) {
	if messageType != websocket.TextMessage {
		return "", errBinaryFrame
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return string(data), nil
	}
	var m inboundMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return "", errMalformedFrame
	}
	if m.Type != "message" || m.Text == nil {
		return "", errMalformedFrame
	}
	return *m.Text, nil
}
