package application

import (
	"context"
	"time"

	"voice-companion/internal/domain"
)

type SignUpRequest struct {
	MemberID      string
	Password      string
	Name          string
	Age           int
	Gender        domain.Gender
	PreferSubject string
}

// Bookmark is a statement as the backend reports it.
type Bookmark struct {
	ID         string
	Content    string
	Bookmarked bool
	CreatedAt  time.Time
}

// RemoteSync is the backend collaborator. Only sign-up and sign-in errors
// reach the user; everything else is best-effort.
type RemoteSync interface {
	SignUp(ctx context.Context, req SignUpRequest) (*domain.User, error)
	SignIn(ctx context.Context, memberID, password string) (*domain.User, error)
	UpdatePreferences(ctx context.Context, memberNum int64, preferSubject string) error
	FetchConversations(ctx context.Context, memberNum int64) ([]domain.Conversation, error)
	SaveConversation(ctx context.Context, memberNum int64, messages []domain.Message) error
	FetchBookmarks(ctx context.Context, memberNum int64) ([]Bookmark, error)
	SetBookmark(ctx context.Context, statementID string, bookmarked bool) error
}
