package domain

import (
	"time"
	"unicode/utf8"
)

type Role string

const (
	RoleSelf    Role = "user"
	RolePartner Role = "response"
)

// SpeakerCode is the single-character speaker tag the backend stores.
func (r Role) SpeakerCode() string {
	if r == RolePartner {
		return "P"
	}
	return "U"
}

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Messages  []Message `json:"messages"`
}

const titleLength = 30

// TitleFor derives a conversation title from its opening text.
func TitleFor(text string) string {
	if utf8.RuneCountInString(text) <= titleLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:titleLength]) + "..."
}

// LastPartnerMessage returns the most recent partner response, if any.
func (c *Conversation) LastPartnerMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RolePartner {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// Clone returns a copy that shares no message storage with c.
func (c Conversation) Clone() Conversation {
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	c.Messages = msgs
	return c
}
