package notifications

import (
	"encoding/json"

	"circle/internal/models"
)

// Event types delivered to feed clients.
const (
	EventNewThread       = "newThread"
	EventUpdateLike      = "updateLike"
	EventNewReply        = "newReply"
	EventMessagesDropped = "messages_dropped"
)

// Event is the envelope written to every websocket client.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// LikeUpdate is the payload of updateLike.
type LikeUpdate struct {
	ThreadID     uint  `json:"threadId"`
	NewLikeCount int64 `json:"newLikeCount"`
}

// NewReply is the payload of newReply.
type NewReply struct {
	ThreadID     uint             `json:"threadId"`
	Reply        models.ReplyView `json:"reply"`
	RepliesCount int64            `json:"repliesCount"`
}

func encodeEvent(eventType string, payload any) ([]byte, error) {
	return json.Marshal(Event{Type: eventType, Payload: payload})
}
