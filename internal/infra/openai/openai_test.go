package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"voice-companion/internal/application"
	"voice-companion/internal/domain"
	"voice-companion/internal/infra/openai"
)

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	}
}

func TestSuggestClient_Suggest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("authorization: %q", r.Header.Get("Authorization"))
		}

		var req struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("response format: %q", req.ResponseFormat.Type)
		}
		if len(req.Messages) != 3 || req.Messages[0].Role != "system" || req.Messages[1].Role != "assistant" || req.Messages[2].Role != "user" {
			t.Errorf("messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletion(`{"suggestions": ["좋아요", "싫어요", "모르겠어요"]}`))
	}))
	defer server.Close()

	client := openai.NewSuggestClientWithURL("test-key", "", server.URL)

	got, err := client.Suggest(context.Background(), application.SuggestionRequest{
		Transcript: []domain.Message{
			{Role: domain.RoleSelf, Text: "커피 드실래요?"},
			{Role: domain.RolePartner, Text: "네 좋아요"},
		},
		Count: 2,
	})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 2 || got[0] != "좋아요" {
		t.Errorf("suggestions: %v", got)
	}
}

func TestSuggestClient_BadRequestNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "bad model", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	client := openai.NewSuggestClientWithURL("test-key", "nope", server.URL)

	if _, err := client.Suggest(context.Background(), application.SuggestionRequest{Count: 5}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestSuggestClient_MissingKey(t *testing.T) {
	client := openai.NewSuggestClient("", "")
	if _, err := client.Suggest(context.Background(), application.SuggestionRequest{}); !errors.Is(err, application.ErrMissingCredential) {
		t.Errorf("got %v, want ErrMissingCredential", err)
	}
}

func TestWhisperClient_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "ko" {
			t.Errorf("fields: model=%q language=%q", r.FormValue("model"), r.FormValue("language"))
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "RIFF-audio" {
				t.Errorf("audio: %q", data)
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"text": " 네 알겠습니다 "})
	}))
	defer server.Close()

	client := openai.NewWhisperClientWithURL("test-key", "ko", server.URL)

	text, err := client.Transcribe(context.Background(), []byte("RIFF-audio"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "네 알겠습니다" {
		t.Errorf("text: got %q", text)
	}
}

func TestWhisperClient_Unauthorized(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := openai.NewWhisperClientWithURL("bad", "ko", server.URL)
	if _, err := client.Transcribe(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}
