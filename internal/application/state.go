package application

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-companion/internal/domain"
)

type Screen string

const (
	ScreenAuth       Screen = "auth"
	ScreenOnboarding Screen = "onboarding"
	ScreenHome       Screen = "home"
	ScreenSettings   Screen = "settings"
)

type EventKind string

const (
	EventScreenChanged        EventKind = "screen_changed"
	EventUserChanged          EventKind = "user_changed"
	EventHistoryChanged       EventKind = "history_changed"
	EventConversationStarted  EventKind = "conversation_started"
	EventMessageAppended      EventKind = "message_appended"
	EventConversationEnded    EventKind = "conversation_ended"
	EventConversationsChanged EventKind = "conversations_changed"
	EventListeningChanged     EventKind = "listening_changed"
	EventRecordingChanged     EventKind = "recording_changed"
)

// Event describes one state mutation. Only the fields relevant to Kind are set.
type Event struct {
	Kind           EventKind         `json:"kind"`
	Screen         Screen            `json:"screen,omitempty"`
	ConversationID string            `json:"conversationId,omitempty"`
	Message        *domain.Message   `json:"message,omitempty"`
	Flag           *bool             `json:"flag,omitempty"`
	Utterance      *domain.Utterance `json:"utterance,omitempty"`
}

// Snapshot is a deep copy of the state at one point in time.
type Snapshot struct {
	Screen        Screen                `json:"screen"`
	User          *domain.User          `json:"user"`
	History       []domain.Utterance    `json:"history"`
	Conversations []domain.Conversation `json:"conversations"`
	Active        *domain.Conversation  `json:"activeConversation"`
	Listening     bool                  `json:"listening"`
	Recording     bool                  `json:"recording"`
}

// State is the single mutable source of truth. Mutations that have a
// persisted counterpart write the LocalStore before returning; store
// failures are logged and do not roll back the in-memory change.
type State struct {
	store  LocalStore
	logger *slog.Logger
	slot   *CaptureSlot
	now    func() time.Time

	mu            sync.RWMutex
	screen        Screen
	user          *domain.User
	history       []domain.Utterance
	conversations []domain.Conversation
	active        *domain.Conversation
	listening     bool
	recording     bool

	obsMu     sync.RWMutex
	observers []func(Event)
}

func NewState(store LocalStore, logger *slog.Logger) *State {
	return &State{
		store:  store,
		logger: logger,
		slot:   NewCaptureSlot(),
		now:    time.Now,
		screen: ScreenAuth,
	}
}

// Restore loads the persisted user, history and conversation list.
func (s *State) Restore() error {
	user, err := s.store.LoadUser()
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	history, err := s.store.LoadHistory()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	convs, err := s.store.LoadConversations()
	if err != nil {
		return fmt.Errorf("loading conversations: %w", err)
	}

	s.mu.Lock()
	s.user = user
	s.history = history
	s.conversations = convs
	if user != nil {
		s.screen = ScreenHome
	} else {
		s.screen = ScreenAuth
	}
	screen := s.screen
	s.mu.Unlock()

	s.emit(Event{Kind: EventScreenChanged, Screen: screen})
	return nil
}

// Subscribe registers fn for every subsequent event. fn runs synchronously
// on the mutating goroutine, after the state lock is released.
func (s *State) Subscribe(fn func(Event)) {
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

func (s *State) emit(events ...Event) {
	s.obsMu.RLock()
	observers := s.observers
	s.obsMu.RUnlock()

	for _, ev := range events {
		for _, fn := range observers {
			fn(ev)
		}
	}
}

func (s *State) CaptureSlot() *CaptureSlot {
	return s.slot
}

func (s *State) Screen() Screen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screen
}

func (s *State) SetScreen(screen Screen) {
	s.mu.Lock()
	s.screen = screen
	s.mu.Unlock()
	s.emit(Event{Kind: EventScreenChanged, Screen: screen})
}

// User returns a copy of the signed-in user, or nil.
func (s *State) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *State) SetUser(user domain.User) {
	s.mu.Lock()
	s.user = &user
	if err := s.store.SaveUser(&user); err != nil {
		s.logger.Warn("persisting user", "error", err)
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventUserChanged})
}

// ClearUser signs the user out locally. History and conversations stay on
// the device.
func (s *State) ClearUser() {
	s.mu.Lock()
	s.user = nil
	hadActive := s.active != nil
	s.active = nil
	s.listening = false
	s.recording = false
	if err := s.store.ClearUser(); err != nil {
		s.logger.Warn("clearing persisted user", "error", err)
	}
	s.mu.Unlock()

	s.slot.Clear()
	events := []Event{{Kind: EventUserChanged}}
	if hadActive {
		events = append(events, Event{Kind: EventConversationEnded})
	}
	s.emit(events...)
}

func (s *State) History() []domain.Utterance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Utterance, len(s.history))
	copy(out, s.history)
	return out
}

func (s *State) Utterance(id string) (domain.Utterance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.history {
		if u.ID == id {
			return u, true
		}
	}
	return domain.Utterance{}, false
}

// RecordSelfUtterance prepends text to the history and adds it to the
// active conversation, starting one if none is active. The check and the
// start happen under one lock so concurrent calls never create two
// conversations.
func (s *State) RecordSelfUtterance(text string) (domain.Conversation, bool) {
	now := s.now()
	rec := domain.Utterance{ID: uuid.NewString(), Text: text, Timestamp: now}
	msg := domain.Message{ID: uuid.NewString(), Role: domain.RoleSelf, Text: text, Timestamp: now}

	s.mu.Lock()
	s.history = append([]domain.Utterance{rec}, s.history...)
	s.persistHistoryLocked()

	started := false
	if s.active == nil {
		s.active = &domain.Conversation{
			ID:        uuid.NewString(),
			Title:     domain.TitleFor(text),
			Timestamp: now,
			Messages:  []domain.Message{msg},
		}
		s.listening = true
		started = true
	} else {
		s.active.Messages = append(s.active.Messages, msg)
	}
	conv := s.active.Clone()
	s.mu.Unlock()

	events := []Event{{Kind: EventHistoryChanged, Utterance: &rec}}
	if started {
		listening := true
		events = append(events,
			Event{Kind: EventConversationStarted, ConversationID: conv.ID, Message: &msg},
			Event{Kind: EventListeningChanged, Flag: &listening},
		)
	} else {
		events = append(events, Event{Kind: EventMessageAppended, ConversationID: conv.ID, Message: &msg})
	}
	s.emit(events...)
	return conv, started
}

// AppendPartnerMessage adds a partner response to the active conversation.
// It reports false when no conversation is active.
func (s *State) AppendPartnerMessage(text string) bool {
	msg := domain.Message{ID: uuid.NewString(), Role: domain.RolePartner, Text: text, Timestamp: s.now()}

	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return false
	}
	s.active.Messages = append(s.active.Messages, msg)
	id := s.active.ID
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessageAppended, ConversationID: id, Message: &msg})
	return true
}

// ActiveConversation returns a copy of the conversation in progress.
func (s *State) ActiveConversation() (domain.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return domain.Conversation{}, false
	}
	return s.active.Clone(), true
}

// ArchiveActive moves the active conversation to the front of the archived
// list, persists the list and disarms listening. A conversation with no
// messages is never archived.
func (s *State) ArchiveActive() (domain.Conversation, bool) {
	s.mu.Lock()
	if s.active == nil || len(s.active.Messages) == 0 {
		s.mu.Unlock()
		return domain.Conversation{}, false
	}
	conv := s.active.Clone()
	s.conversations = append([]domain.Conversation{conv}, s.conversations...)
	s.persistConversationsLocked()
	s.active = nil
	s.listening = false
	s.recording = false
	s.mu.Unlock()

	s.slot.Clear()
	listening := false
	s.emit(
		Event{Kind: EventConversationEnded, ConversationID: conv.ID},
		Event{Kind: EventListeningChanged, Flag: &listening},
		Event{Kind: EventConversationsChanged},
	)
	return conv.Clone(), true
}

func (s *State) Conversations() []domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return out
}

func (s *State) Conversation(id string) (domain.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.ID == id {
			return c.Clone(), true
		}
	}
	return domain.Conversation{}, false
}

// ReplaceConversations swaps the archived list wholesale and persists it.
func (s *State) ReplaceConversations(convs []domain.Conversation) {
	cp := make([]domain.Conversation, len(convs))
	for i, c := range convs {
		cp[i] = c.Clone()
	}

	s.mu.Lock()
	s.conversations = cp
	s.persistConversationsLocked()
	s.mu.Unlock()
	s.emit(Event{Kind: EventConversationsChanged})
}

// SetFavorite sets the favorite flag on one history record.
func (s *State) SetFavorite(id string, favorite bool) bool {
	s.mu.Lock()
	idx := -1
	for i := range s.history {
		if s.history[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.history[idx].Favorite = favorite
	rec := s.history[idx]
	s.persistHistoryLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventHistoryChanged, Utterance: &rec})
	return true
}

// MergeFavorites replaces every favorite record with the given set and keeps
// all local non-favorite records in their current order, after the favorites.
func (s *State) MergeFavorites(favorites []domain.Utterance) {
	s.mu.Lock()
	merged := make([]domain.Utterance, 0, len(favorites)+len(s.history))
	merged = append(merged, favorites...)
	for _, u := range s.history {
		if !u.Favorite {
			merged = append(merged, u)
		}
	}
	s.history = merged
	s.persistHistoryLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventHistoryChanged})
}

func (s *State) Listening() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listening
}

func (s *State) Recording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording
}

func (s *State) SetRecording(recording bool) {
	s.mu.Lock()
	if s.recording == recording {
		s.mu.Unlock()
		return
	}
	s.recording = recording
	s.mu.Unlock()
	s.emit(Event{Kind: EventRecordingChanged, Flag: &recording})
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Screen:        s.screen,
		History:       make([]domain.Utterance, len(s.history)),
		Conversations: make([]domain.Conversation, len(s.conversations)),
		Listening:     s.listening,
		Recording:     s.recording,
	}
	copy(snap.History, s.history)
	for i, c := range s.conversations {
		snap.Conversations[i] = c.Clone()
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.active != nil {
		c := s.active.Clone()
		snap.Active = &c
	}
	return snap
}

func (s *State) persistHistoryLocked() {
	if err := s.store.SaveHistory(s.history); err != nil {
		s.logger.Warn("persisting speech history", "error", err)
	}
}

func (s *State) persistConversationsLocked() {
	if err := s.store.SaveConversations(s.conversations); err != nil {
		s.logger.Warn("persisting conversations", "error", err)
	}
}
