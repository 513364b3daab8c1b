package application_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voice-companion/internal/application"
	"voice-companion/internal/domain"
	"voice-companion/internal/infra/audio"
	"voice-companion/internal/infra/store"
)

type staticSynth struct{}

func (staticSynth) Synthesize(_ context.Context, _ string) ([]byte, error) {
	return make([]byte, 3200), nil
}

func (staticSynth) SampleRate() int { return 16000 }

func TestIntegration_ConversationRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "companion.db")
	repliesDir := filepath.Join(dir, "replies")
	spokenDir := filepath.Join(dir, "spoken")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}

	logger := discardLogger()
	state := application.NewState(db, logger)
	if err := state.Restore(); err != nil {
		t.Fatalf("restoring: %v", err)
	}

	voice := audio.NewVoice(staticSynth{}, audio.NewFilePlayer(spokenDir), logger)
	orch := application.NewOrchestrator(state, voice, nil, fastTurn(), logger)

	stt := &mockSTT{transcriptions: map[string]string{"partner-audio": "네, 잠깐만요"}}
	listener := application.NewListener(state, audio.NewFileSource(repliesDir), stt, orch.OnCaptureResult, logger)
	listener.SetRestartDelay(5 * time.Millisecond)
	listener.Attach()

	if err := orch.Speak("물 좀 주세요"); err != nil {
		t.Fatalf("speak: %v", err)
	}

	if err := os.MkdirAll(repliesDir, 0755); err != nil {
		t.Fatalf("creating replies dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repliesDir, "reply.wav"), []byte("partner-audio"), 0644); err != nil {
		t.Fatalf("writing reply: %v", err)
	}

	ok := waitFor(3*time.Second, func() bool {
		conv, active := state.ActiveConversation()
		return active && len(conv.Messages) == 2
	})
	if !ok {
		conv, _ := state.ActiveConversation()
		t.Fatalf("partner reply not recorded: %+v", conv.Messages)
	}

	conv, _ := state.ActiveConversation()
	if conv.Messages[1].Role != domain.RolePartner || conv.Messages[1].Text != "네, 잠깐만요" {
		t.Errorf("unexpected partner message: %+v", conv.Messages[1])
	}

	spoken, _ := os.ReadDir(spokenDir)
	if len(spoken) != 1 {
		t.Errorf("spoken files: got %d, want 1", len(spoken))
	}

	if err := orch.EndConversation(); err != nil {
		t.Fatalf("ending conversation: %v", err)
	}

	listener.Close()
	orch.Close()
	if err := db.Close(); err != nil {
		t.Fatalf("closing store: %v", err)
	}

	reopened, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer reopened.Close()

	restored := application.NewState(reopened, logger)
	if err := restored.Restore(); err != nil {
		t.Fatalf("restoring: %v", err)
	}

	convs := restored.Conversations()
	if len(convs) != 1 || len(convs[0].Messages) != 2 {
		t.Fatalf("archived conversations not persisted: %+v", convs)
	}
	if convs[0].Title != "물 좀 주세요" {
		t.Errorf("title: got %q", convs[0].Title)
	}
	if len(restored.History()) != 1 {
		t.Errorf("history: got %d entries", len(restored.History()))
	}
}
