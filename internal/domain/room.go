package domain

import "time"

// RoomID is caller-supplied, usually taken from the meeting URL.
type RoomID string

// ChatMessage is immutable once appended to a room's history.
type ChatMessage struct {
	Sender       string    `json:"sender"`
	SenderConnID ConnID    `json:"senderConnectionId"`
	Data         string    `json:"data"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewChatMessage(from ConnID, sender, data string, now time.Time) (ChatMessage, error) {
	if data == "" {
		return ChatMessage{}, &ValidationError{Field: "data", Reason: "message body is empty"}
	}
	if sender == "" {
		return ChatMessage{}, &ValidationError{Field: "sender", Reason: "sender name is empty"}
	}
	return ChatMessage{
		Sender:       sender,
		SenderConnID: from,
		Data:         data,
		Timestamp:    now,
	}, nil
}
