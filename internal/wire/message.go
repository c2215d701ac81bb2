package wire

import (
	"encoding/json"
	"strings"
)

// messageTypeReadyToStop marks the server's terminal message for a session.
const messageTypeReadyToStop = "ready_to_stop"

// TranscriptEvent is one decoded inbound transcript message.
//
// Text is the stable transcript for the whole session so far; it replaces,
// never appends to, the previous event's text. Final marks the ready_to_stop
// message carrying the last stable text the server will emit.
type TranscriptEvent struct {
	Text  string
	Final bool
}

// serverMessage mirrors the subset of the server's JSON the client consumes.
// Servers send additional fields; they are ignored.
type serverMessage struct {
	Type  string `json:"type"`
	Lines []struct {
		Text string `json:"text"`
	} `json:"lines"`
}

// decodeEvent parses one inbound message payload into a TranscriptEvent.
//
// Unknown or absent type values are non-terminal updates.
func decodeEvent(payload []byte) (TranscriptEvent, error) {
	var msg serverMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return TranscriptEvent{}, err
	}

	parts := make([]string, 0, len(msg.Lines))
	for _, line := range msg.Lines {
		if strings.TrimSpace(line.Text) == "" {
			continue
		}
		parts = append(parts, line.Text)
	}

	return TranscriptEvent{
		Text:  collapseSpaces(strings.Join(parts, " ")),
		Final: msg.Type == messageTypeReadyToStop,
	}, nil
}

// collapseSpaces trims and squeezes whitespace runs to single spaces.
func collapseSpaces(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return strings.Join(strings.Fields(raw), " ")
}
