package audio_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voice-companion/internal/domain"
	"voice-companion/internal/infra/audio"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// awaitReply starts a capture in the background and waits until the source
// reports it as recording.
func awaitReply(t *testing.T, ctx context.Context, source *audio.PartnerSource) <-chan []byte {
	t.Helper()
	out := make(chan []byte, 1)
	go func() {
		data, err := source.NextUtterance(ctx)
		if err == nil {
			out <- data
		}
		close(out)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		rec := httptest.NewRecorder()
		source.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		var health struct {
			Recording bool `json:"recording"`
		}
		_ = json.NewDecoder(rec.Body).Decode(&health)
		if health.Recording {
			return out
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("capture never became ready")
	return nil
}

func post(source *audio.PartnerSource, path, body string) int {
	rec := httptest.NewRecorder()
	source.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec.Code
}

func TestPartnerSource_ReceiveAudio(t *testing.T) {
	source := audio.NewPartnerSource(discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := source.Start(ctx); err != nil {
		t.Fatalf("starting source: %v", err)
	}
	defer source.Stop()

	replies := awaitReply(t, ctx, source)

	testAudio := []byte("fake audio data for testing")
	req := httptest.NewRequest(http.MethodPost, "/audio", bytes.NewReader(testAudio))
	rec := httptest.NewRecorder()
	source.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status code: got %d, want %d", rec.Code, http.StatusAccepted)
	}

	received := <-replies
	if !bytes.Equal(received, testAudio) {
		t.Errorf("audio mismatch: got %d bytes, want %d bytes", len(received), len(testAudio))
	}
}

func TestPartnerSource_ReceiveText(t *testing.T) {
	source := audio.NewPartnerSource(discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = source.Start(ctx)
	defer source.Stop()

	replies := awaitReply(t, ctx, source)

	if code := post(source, "/text", "  네, 좋아요  "); code != http.StatusAccepted {
		t.Fatalf("status code: got %d, want %d", code, http.StatusAccepted)
	}

	text, ok := domain.TypedReply(<-replies)
	if !ok {
		t.Fatal("expected typed reply")
	}
	if text != "네, 좋아요" {
		t.Errorf("text: got %q", text)
	}
}

func TestPartnerSource_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		start      bool
		capture    bool
		path       string
		body       string
		wantStatus int
	}{
		{name: "not listening", start: false, path: "/audio", body: "audio", wantStatus: http.StatusConflict},
		{name: "no capture pending", start: true, path: "/text", body: "hello", wantStatus: http.StatusConflict},
		{name: "empty audio", start: true, capture: true, path: "/audio", body: "", wantStatus: http.StatusBadRequest},
		{name: "blank text", start: true, capture: true, path: "/text", body: "   ", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			source := audio.NewPartnerSource(discardLogger())
			if tt.start {
				_ = source.Start(ctx)
				defer source.Stop()
			}
			if tt.capture {
				awaitReply(t, ctx, source)
			}

			if code := post(source, tt.path, tt.body); code != tt.wantStatus {
				t.Errorf("status code: got %d, want %d", code, tt.wantStatus)
			}
		})
	}
}

func TestPartnerSource_OneReplyPerCapture(t *testing.T) {
	source := audio.NewPartnerSource(discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = source.Start(ctx)
	defer source.Stop()

	replies := awaitReply(t, ctx, source)

	if code := post(source, "/text", "first"); code != http.StatusAccepted {
		t.Fatalf("first reply: got %d", code)
	}
	if code := post(source, "/text", "second"); code != http.StatusConflict {
		t.Errorf("second reply while nothing is recording: got %d, want %d", code, http.StatusConflict)
	}

	if text, _ := domain.TypedReply(<-replies); text != "first" {
		t.Errorf("reply: got %q", text)
	}
}

func TestPartnerSource_CancelledCaptureStopsAccepting(t *testing.T) {
	source := audio.NewPartnerSource(discardLogger())
	_ = source.Start(context.Background())
	defer source.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	replies := awaitReply(t, ctx, source)
	cancel()
	<-replies

	if code := post(source, "/text", "too late"); code != http.StatusConflict {
		t.Errorf("status code: got %d, want %d", code, http.StatusConflict)
	}
}

func TestFileSource_LoadFromDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	testCases := []struct {
		filename string
		content  []byte
	}{
		{"reply1.wav", []byte("RIFF....WAVEfmt audio data 1")},
		{"reply2.txt", []byte("잠깐만요\n")},
		{"notes.md", []byte("ignored")},
	}

	for _, tc := range testCases {
		path := filepath.Join(tmpDir, tc.filename)
		if err := os.WriteFile(path, tc.content, 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}
	}

	source := audio.NewFileSource(tmpDir)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := source.Start(ctx); err != nil {
		t.Fatalf("starting source: %v", err)
	}

	audio1, err := source.NextUtterance(ctx)
	if err != nil {
		t.Fatalf("reading first reply: %v", err)
	}
	if !bytes.Equal(audio1, testCases[0].content) {
		t.Errorf("first reply: got %q", audio1)
	}

	reply2, err := source.NextUtterance(ctx)
	if err != nil {
		t.Fatalf("reading second reply: %v", err)
	}
	if text, ok := domain.TypedReply(reply2); !ok || text != "잠깐만요" {
		t.Errorf("second reply: got %q", reply2)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "reply1.wav.processed")); err != nil {
		t.Errorf("expected consumed file to be renamed: %v", err)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelShort()
	if _, err := source.NextUtterance(short); err == nil {
		t.Error("expected timeout once the directory is drained")
	}
}

func TestFileSource_LoadSampleAudios(t *testing.T) {
	samplesDir := "../../../testdata/audio"

	if _, err := os.Stat(samplesDir); os.IsNotExist(err) {
		t.Skip("testdata/audio directory not found, skipping sample audio tests")
	}

	source := audio.NewFileSource(t.TempDir())
	entries, _ := os.ReadDir(samplesDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".wav") {
			data, err := os.ReadFile(filepath.Join(samplesDir, e.Name()))
			if err != nil {
				t.Fatalf("reading sample: %v", err)
			}
			if len(data) < 44 {
				t.Errorf("%s too short to be valid WAV", e.Name())
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := source.Start(ctx); err != nil {
		t.Fatalf("starting source: %v", err)
	}
}
