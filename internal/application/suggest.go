package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"voice-companion/internal/domain"
)

type SuggestionGenerator interface {
	Suggest(ctx context.Context, req SuggestionRequest) ([]string, error)
}

type SuggestionRequest struct {
	Preferences  string
	LastResponse string
	Transcript   []domain.Message
	Count        int
	MaxLength    int
	Language     string
}

// Turn is one transcript entry in chat-completion form. The model plays the
// user, so the user's own utterances are "assistant" turns and the partner's
// replies are "user" turns.
type Turn struct {
	Role    string
	Content string
}

// FallbackSuggestions replaces the suggestion list whenever generation fails.
var FallbackSuggestions = []string{
	"안녕하세요",
	"도움이 필요해요",
	"고마워요",
	"괜찮아요",
	"잠깐만요",
	"알겠어요",
	"죄송해요",
	"화장실 가고 싶어요",
}

func Fallback() []string {
	out := make([]string, len(FallbackSuggestions))
	copy(out, FallbackSuggestions)
	return out
}

// SystemInstruction is shared by all suggestion providers.
func (r SuggestionRequest) SystemInstruction() string {
	prefs := strings.TrimSpace(r.Preferences)
	if prefs == "" {
		prefs = "(none provided)"
	}
	last := strings.TrimSpace(r.LastResponse)
	if last == "" {
		last = "(the conversation has not started yet)"
	}

	return fmt.Sprintf(`You help a person with a speech impairment reply in a spoken conversation.
You suggest short phrases they can tap to have read aloud.

About the user: %s
Latest thing the conversation partner said: %s

RULES:
- Suggest exactly %d replies the user could say next
- Each reply must be at most %d characters
- Write in %s, natural and polite
- Replies must fit the conversation so far

Respond ONLY with valid JSON (no markdown, no backticks):
{"suggestions": ["...", "..."]}`, prefs, last, r.Count, r.MaxLength, r.Language)
}

// Turns renders the transcript for chat-completion providers. A request with
// no transcript gets a single opening prompt so providers always receive a
// user turn.
func (r SuggestionRequest) Turns() []Turn {
	turns := make([]Turn, 0, len(r.Transcript)+1)
	for _, m := range r.Transcript {
		role := "user"
		if m.Role == domain.RoleSelf {
			role = "assistant"
		}
		turns = append(turns, Turn{Role: role, Content: m.Text})
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		turns = append(turns, Turn{Role: "user", Content: "What could I say next?"})
	}
	return turns
}

type suggestionPayload struct {
	Suggestions []string `json:"suggestions"`
}

// ParseSuggestions decodes a provider's text output. Code fences are
// tolerated; anything else that is not {"suggestions": [...]} with at least
// one non-empty entry is ErrMalformedSuggestions.
func ParseSuggestions(text string, limit int) ([]string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var payload suggestionPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSuggestions, err)
	}

	out := make([]string, 0, len(payload.Suggestions))
	for _, s := range payload.Suggestions {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no suggestions", ErrMalformedSuggestions)
	}
	return out, nil
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
