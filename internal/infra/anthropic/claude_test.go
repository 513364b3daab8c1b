package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"voice-companion/internal/application"
	"voice-companion/internal/domain"
	"voice-companion/internal/infra/anthropic"
)

func suggestionRequest() application.SuggestionRequest {
	return application.SuggestionRequest{
		Preferences:  "휠체어를 사용해요",
		LastResponse: "어디로 가세요?",
		Transcript: []domain.Message{
			{Role: domain.RoleSelf, Text: "안녕하세요"},
			{Role: domain.RoleSelf, Text: "도와주세요"},
			{Role: domain.RolePartner, Text: "어디로 가세요?"},
		},
		Count:     5,
		MaxLength: 15,
		Language:  "Korean",
	}
}

func TestClaudeClient_Suggest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key: got %q", r.Header.Get("x-api-key"))
		}

		var req struct {
			System   string `json:"system"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		roles := ""
		for _, m := range req.Messages {
			roles += m.Role[:1]
		}
		if roles != "uau" {
			t.Errorf("message roles: got %s, want uau", roles)
		}
		if req.Messages[1].Content != "안녕하세요\n도와주세요" {
			t.Errorf("consecutive turns should be joined, got %q", req.Messages[1].Content)
		}

		response := map[string]any{
			"content": []map[string]string{
				{"text": "```json\n{\"suggestions\": [\"병원에 가요\", \"엘리베이터 어디예요?\"]}\n```"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := anthropic.NewClaudeClientWithURL("test-key", "claude-test", server.URL)

	got, err := client.Suggest(context.Background(), suggestionRequest())
	if err != nil {
		t.Fatalf("Suggest error: %v", err)
	}
	if len(got) != 2 || got[0] != "병원에 가요" {
		t.Errorf("suggestions: got %v", got)
	}
}

func TestClaudeClient_SuggestMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "I can't help with that."}},
		})
	}))
	defer server.Close()

	client := anthropic.NewClaudeClientWithURL("test-key", "claude-test", server.URL)

	if _, err := client.Suggest(context.Background(), suggestionRequest()); !errors.Is(err, application.ErrMalformedSuggestions) {
		t.Errorf("got %v, want ErrMalformedSuggestions", err)
	}
}

func TestClaudeClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error": "invalid x-api-key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := anthropic.NewClaudeClientWithURL("bad-key", "claude-test", server.URL)

	if _, err := client.Suggest(context.Background(), suggestionRequest()); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestClaudeClient_MissingKey(t *testing.T) {
	client := anthropic.NewClaudeClientWithURL("", "claude-test", "http://unused")

	if _, err := client.Suggest(context.Background(), suggestionRequest()); !errors.Is(err, application.ErrMissingCredential) {
		t.Errorf("got %v, want ErrMissingCredential", err)
	}
}
