package domain

import "time"

// Utterance is one phrase the user had spoken aloud.
type Utterance struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Favorite  bool      `json:"isFavorite"`
}

// TypedReplyPrefix marks partner input that arrived as text instead of audio.
const TypedReplyPrefix = "__TEXT__:"

// TypedReply extracts the text of a typed partner reply.
func TypedReply(data []byte) (string, bool) {
	if len(data) > len(TypedReplyPrefix) && string(data[:len(TypedReplyPrefix)]) == TypedReplyPrefix {
		return string(data[len(TypedReplyPrefix):]), true
	}
	return "", false
}
