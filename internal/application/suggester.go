package application

import (
	"context"
	"log/slog"
	"time"
)

type SuggesterConfig struct {
	Count       int
	MaxLength   int
	Language    string
	TokenBudget int
	Timeout     time.Duration
}

func DefaultSuggesterConfig() SuggesterConfig {
	return SuggesterConfig{
		Count:       5,
		MaxLength:   15,
		Language:    "Korean",
		TokenBudget: 2000,
		Timeout:     15 * time.Second,
	}
}

// Suggester produces candidate next utterances for the user. Whatever goes
// wrong, the caller gets the static fallback list instead of an error.
type Suggester struct {
	state  *State
	gen    SuggestionGenerator
	cfg    SuggesterConfig
	logger *slog.Logger
}

func NewSuggester(state *State, gen SuggestionGenerator, cfg SuggesterConfig, logger *slog.Logger) *Suggester {
	return &Suggester{state: state, gen: gen, cfg: cfg, logger: logger}
}

func (s *Suggester) Request() SuggestionRequest {
	req := SuggestionRequest{
		Count:     s.cfg.Count,
		MaxLength: s.cfg.MaxLength,
		Language:  s.cfg.Language,
	}
	if user := s.state.User(); user != nil {
		req.Preferences = user.Characteristics
	}
	if conv, ok := s.state.ActiveConversation(); ok {
		req.Transcript = FitTranscript(conv.Messages, s.cfg.TokenBudget)
		if last, ok := conv.LastPartnerMessage(); ok {
			req.LastResponse = last.Text
		}
	}
	return req
}

func (s *Suggester) Suggestions(ctx context.Context) []string {
	if s.gen == nil {
		return Fallback()
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	out, err := s.gen.Suggest(ctx, s.Request())
	if err != nil {
		s.logger.Warn("generating suggestions, using fallback", "error", err)
		return Fallback()
	}

	out = s.withinLength(out)
	if len(out) == 0 {
		s.logger.Warn("no usable suggestions, using fallback")
		return Fallback()
	}
	if s.cfg.Count > 0 && len(out) > s.cfg.Count {
		out = out[:s.cfg.Count]
	}
	return out
}

// withinLength drops phrases longer than the configured limit.
func (s *Suggester) withinLength(in []string) []string {
	if s.cfg.MaxLength <= 0 {
		return in
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if runeLen(p) > s.cfg.MaxLength {
			s.logger.Debug("dropping over-length suggestion", "suggestion", p)
			continue
		}
		out = append(out, p)
	}
	return out
}
