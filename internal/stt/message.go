package stt

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies a text frame on the streaming connection
type MessageType string

const (
	MessagePartial MessageType = "partial"
	MessageFinal   MessageType = "final"
	MessageDone    MessageType = "done"
)

// Message is a JSON text frame exchanged with the transcription service
type Message struct {
	Type MessageType `json:"type"`
	Text string      `json:"text,omitempty"`
}

// DecodeMessage parses a text frame. Unknown types decode without error;
// callers ignore them.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

func encodeDone() []byte {
	data, _ := json.Marshal(Message{Type: MessageDone})
	return data
}
