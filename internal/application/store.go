package application

import "voice-companion/internal/domain"

// LocalStore is the durable on-device cache. A nil user with a nil error
// means nothing has been saved yet.
type LocalStore interface {
	LoadUser() (*domain.User, error)
	SaveUser(user *domain.User) error
	ClearUser() error
	LoadHistory() ([]domain.Utterance, error)
	SaveHistory(history []domain.Utterance) error
	LoadConversations() ([]domain.Conversation, error)
	SaveConversations(convs []domain.Conversation) error
}
