package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"voice-companion/internal/domain"
)

// Syncer reconciles the State container with the backend. Only sign-up and
// sign-in report remote failures; every other call degrades to local data.
type Syncer struct {
	state  *State
	remote RemoteSync
	logger *slog.Logger
}

func NewSyncer(state *State, remote RemoteSync, logger *slog.Logger) *Syncer {
	return &Syncer{state: state, remote: remote, logger: logger}
}

func (s *Syncer) SignUp(ctx context.Context, req SignUpRequest) (*domain.User, error) {
	req.MemberID = strings.TrimSpace(req.MemberID)
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.MemberID == "":
		return nil, &ValidationError{Field: "memberId"}
	case req.Password == "":
		return nil, &ValidationError{Field: "password"}
	case req.Name == "":
		return nil, &ValidationError{Field: "name"}
	}

	user, err := s.remote.SignUp(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("signing up: %w", err)
	}

	s.state.SetUser(*user)
	s.state.SetScreen(ScreenOnboarding)
	s.logger.Info("signed up", "member", user.MemberNum)
	return user, nil
}

// SignIn authenticates and then refreshes conversations and favorites from
// the backend.
func (s *Syncer) SignIn(ctx context.Context, memberID, password string) (*domain.User, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, &ValidationError{Field: "memberId"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password"}
	}

	user, err := s.remote.SignIn(ctx, memberID, password)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}

	s.state.SetUser(*user)
	s.state.SetScreen(ScreenHome)
	s.logger.Info("signed in", "member", user.MemberNum)

	s.LoadConversations(ctx)
	s.LoadFavorites(ctx)
	return user, nil
}

func (s *Syncer) SignOut() {
	s.state.ClearUser()
	s.state.SetScreen(ScreenAuth)
}

// CompleteOnboarding stores the user's self-description, which doubles as
// the preferred subject sent to the backend.
func (s *Syncer) CompleteOnboarding(ctx context.Context, characteristics string) error {
	user := s.state.User()
	if user == nil {
		return ErrNotAuthenticated
	}

	characteristics = strings.TrimSpace(characteristics)
	user.Characteristics = characteristics
	user.PreferSubject = characteristics
	s.state.SetUser(*user)
	s.pushPreferences(ctx, user)
	s.state.SetScreen(ScreenHome)
	return nil
}

func (s *Syncer) UpdateProfile(ctx context.Context, name, characteristics string) (*domain.User, error) {
	user := s.state.User()
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name"}
	}

	user.Name = name
	user.Characteristics = strings.TrimSpace(characteristics)
	user.PreferSubject = user.Characteristics
	s.state.SetUser(*user)
	s.pushPreferences(ctx, user)
	return user, nil
}

func (s *Syncer) pushPreferences(ctx context.Context, user *domain.User) {
	if !user.CanSync() {
		return
	}
	if err := s.remote.UpdatePreferences(ctx, user.MemberNum, user.PreferSubject); err != nil {
		s.logger.Warn("updating remote preferences", "member", user.MemberNum, "error", err)
	}
}

// LoadConversations replaces the local conversation list with the server's.
// On failure the local list stays as it is.
func (s *Syncer) LoadConversations(ctx context.Context) {
	user := s.state.User()
	if !user.CanSync() {
		return
	}

	convs, err := s.remote.FetchConversations(ctx, user.MemberNum)
	if err != nil {
		s.logger.Warn("fetching conversations, keeping local copy", "error", err)
		return
	}

	s.state.ReplaceConversations(convs)
	s.logger.Info("conversations loaded", "count", len(convs))
}

// LoadFavorites makes the server authoritative for favorites: local
// favorites the server does not report are dropped, non-favorites are kept.
func (s *Syncer) LoadFavorites(ctx context.Context) {
	user := s.state.User()
	if !user.CanSync() {
		return
	}

	bookmarks, err := s.remote.FetchBookmarks(ctx, user.MemberNum)
	if err != nil {
		s.logger.Warn("fetching favorites, keeping local copy", "error", err)
		return
	}

	favorites := make([]domain.Utterance, 0, len(bookmarks))
	for _, b := range bookmarks {
		if !b.Bookmarked {
			continue
		}
		favorites = append(favorites, domain.Utterance{
			ID:        b.ID,
			Text:      b.Content,
			Timestamp: b.CreatedAt,
			Favorite:  true,
		})
	}

	s.state.MergeFavorites(favorites)
	s.logger.Info("favorites loaded", "count", len(favorites))
}

// ToggleFavorite flips the favorite flag. The remote mirror is attempted
// when signed in, but the local flip is applied whatever its outcome.
func (s *Syncer) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	rec, ok := s.state.Utterance(id)
	if !ok {
		return false, ErrUtteranceNotFound
	}
	favorite := !rec.Favorite

	if s.state.User() != nil {
		if err := s.remote.SetBookmark(ctx, id, favorite); err != nil {
			s.logger.Warn("mirroring favorite, applying locally", "utterance", id, "error", err)
		}
	}

	s.state.SetFavorite(id, favorite)
	return favorite, nil
}

// SaveConversation posts an archived conversation. It silently skips when
// there is no synced user or nothing to save.
func (s *Syncer) SaveConversation(ctx context.Context, conv domain.Conversation) error {
	user := s.state.User()
	if !user.CanSync() || len(conv.Messages) == 0 {
		return nil
	}

	if err := s.remote.SaveConversation(ctx, user.MemberNum, conv.Messages); err != nil {
		return fmt.Errorf("saving conversation %s: %w", conv.ID, err)
	}
	s.logger.Info("conversation saved remotely", "conversation", conv.ID)
	return nil
}
