package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"voice-companion/internal/application"
	"voice-companion/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	mu            sync.Mutex
	user          *domain.User
	history       []domain.Utterance
	conversations []domain.Conversation
	historySaves  int
	convSaves     int
}

func (m *memStore) LoadUser() (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user, nil
}

func (m *memStore) SaveUser(u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.user = &cp
	return nil
}

func (m *memStore) ClearUser() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	return nil
}

func (m *memStore) LoadHistory() ([]domain.Utterance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Utterance(nil), m.history...), nil
}

func (m *memStore) SaveHistory(h []domain.Utterance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append([]domain.Utterance(nil), h...)
	m.historySaves++
	return nil
}

func (m *memStore) LoadConversations() ([]domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Conversation(nil), m.conversations...), nil
}

func (m *memStore) SaveConversations(c []domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations = append([]domain.Conversation(nil), c...)
	m.convSaves++
	return nil
}

// mockOutput reports playback start immediately unless fail is set.
type mockOutput struct {
	mu      sync.Mutex
	spoken  []string
	fail    error
	started chan time.Time
}

func (m *mockOutput) Speak(_ context.Context, text string, started func()) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, text)
	m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}
	if m.started != nil {
		select {
		case m.started <- time.Now():
		default:
		}
	}
	started()
	return nil
}

func (m *mockOutput) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.spoken...)
}

var errUnreachable = errors.New("dial tcp: connection refused")

type mockRemote struct {
	mu sync.Mutex

	user          *domain.User
	signInErr     error
	conversations []domain.Conversation
	fetchConvErr  error
	bookmarks     []application.Bookmark
	bookmarkErr   error
	setBookmark   error
	saveErr       error

	bookmarkCalls []bool
	saved         [][]domain.Message
	preferences   []string
}

func (m *mockRemote) SignUp(_ context.Context, req application.SignUpRequest) (*domain.User, error) {
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	u := *m.user
	u.Name = req.Name
	return &u, nil
}

func (m *mockRemote) SignIn(_ context.Context, _, _ string) (*domain.User, error) {
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	u := *m.user
	return &u, nil
}

func (m *mockRemote) UpdatePreferences(_ context.Context, _ int64, preferSubject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferences = append(m.preferences, preferSubject)
	return nil
}

func (m *mockRemote) FetchConversations(_ context.Context, _ int64) ([]domain.Conversation, error) {
	if m.fetchConvErr != nil {
		return nil, m.fetchConvErr
	}
	return m.conversations, nil
}

func (m *mockRemote) SaveConversation(_ context.Context, _ int64, msgs []domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, msgs)
	return nil
}

func (m *mockRemote) FetchBookmarks(_ context.Context, _ int64) ([]application.Bookmark, error) {
	if m.bookmarkErr != nil {
		return nil, m.bookmarkErr
	}
	return m.bookmarks, nil
}

func (m *mockRemote) SetBookmark(_ context.Context, _ string, bookmarked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookmarkCalls = append(m.bookmarkCalls, bookmarked)
	return m.setBookmark
}

func (m *mockRemote) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// mockSource hands out queued utterances; NextUtterance blocks until one is
// queued or ctx ends.
type mockSource struct {
	startDelay time.Duration
	startErr   error
	queue      chan []byte

	mu      sync.Mutex
	started int
	stopped int
}

func newMockSource() *mockSource {
	return &mockSource{queue: make(chan []byte, 10)}
}

func (m *mockSource) Start(_ context.Context) error {
	if m.startDelay > 0 {
		time.Sleep(m.startDelay)
	}
	if m.startErr != nil {
		return m.startErr
	}
	m.mu.Lock()
	m.started++
	m.mu.Unlock()
	return nil
}

func (m *mockSource) Stop() error {
	m.mu.Lock()
	m.stopped++
	m.mu.Unlock()
	return nil
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) NextUtterance(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data := <-m.queue:
		return data, nil
	}
}

type mockSTT struct {
	transcriptions map[string]string
}

func (m *mockSTT) Transcribe(_ context.Context, audio []byte) (string, error) {
	if text, ok := m.transcriptions[string(audio)]; ok {
		return text, nil
	}
	return "", errors.New("unrecognized audio")
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func fastTurn() application.TurnConfig {
	return application.TurnConfig{
		SettleDelay:  10 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  20,
		ArmDelay:     20 * time.Millisecond,
	}
}
