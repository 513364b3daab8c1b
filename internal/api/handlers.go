package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"voice-companion/internal/application"
	"voice-companion/internal/domain"
)

const suggestionTimeout = 20 * time.Second

type signUpRequest struct {
	MemberID      string `json:"memberId"`
	Password      string `json:"password"`
	Name          string `json:"name"`
	Age           int    `json:"age"`
	Gender        int    `json:"gender"`
	PreferSubject string `json:"preferSubject"`
}

type signInRequest struct {
	MemberID string `json:"memberId"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name            string `json:"name"`
	Characteristics string `json:"characteristics"`
}

type speakRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"listening": s.deps.State.Listening(),
		"clients":   s.events.Count(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.State.Snapshot())
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Screen application.Screen `json:"screen"`
	}
	if !decode(w, r, &req) {
		return
	}

	switch req.Screen {
	case application.ScreenHome, application.ScreenSettings:
	case application.ScreenAuth, application.ScreenOnboarding:
		writeError(w, http.StatusBadRequest, "screen is driven by sign-in state")
		return
	default:
		writeError(w, http.StatusBadRequest, "unknown screen")
		return
	}

	if s.deps.State.User() == nil {
		s.fail(w, "change screen", application.ErrNotAuthenticated)
		return
	}
	s.deps.State.SetScreen(req.Screen)
	writeJSON(w, http.StatusOK, map[string]application.Screen{"screen": req.Screen})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decode(w, r, &req) {
		return
	}

	gender := domain.GenderMale
	if req.Gender == int(domain.GenderFemale) {
		gender = domain.GenderFemale
	}

	user, err := s.deps.Syncer.SignUp(r.Context(), application.SignUpRequest{
		MemberID:      req.MemberID,
		Password:      req.Password,
		Name:          req.Name,
		Age:           req.Age,
		Gender:        gender,
		PreferSubject: req.PreferSubject,
	})
	if err != nil {
		s.fail(w, "sign up", err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := s.deps.Syncer.SignIn(r.Context(), req.MemberID, req.Password)
	if err != nil {
		s.fail(w, "sign in", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleSignOut(w http.ResponseWriter, _ *http.Request) {
	s.deps.Syncer.SignOut()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}

	if err := s.deps.Syncer.CompleteOnboarding(r.Context(), req.Characteristics); err != nil {
		s.fail(w, "onboarding", err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.State.User())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := s.deps.Syncer.UpdateProfile(r.Context(), req.Name, req.Characteristics)
	if err != nil {
		s.fail(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if !decode(w, r, &req) {
		return
	}

	if err := s.deps.Orchestrator.Speak(req.Text); err != nil {
		s.fail(w, "speak", err)
		return
	}

	conv, _ := s.deps.State.ActiveConversation()
	writeJSON(w, http.StatusAccepted, conv)
}

func (s *Server) handleEndConversation(w http.ResponseWriter, _ *http.Request) {
	active, _ := s.deps.State.ActiveConversation()
	if err := s.deps.Orchestrator.EndConversation(); err != nil {
		s.fail(w, "end conversation", err)
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *Server) handleCaptureStart(w http.ResponseWriter, _ *http.Request) {
	if err := s.deps.Orchestrator.StartCapture(); err != nil {
		s.fail(w, "start capture", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recording"})
}

func (s *Server) handleCaptureStop(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Listener == nil {
		s.fail(w, "stop capture", application.ErrCaptureUnavailable)
		return
	}
	s.deps.Listener.StopRecording()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	favorite, err := s.deps.Syncer.ToggleFavorite(r.Context(), id)
	if err != nil {
		s.fail(w, "toggle favorite", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "isFavorite": favorite})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), suggestionTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": s.deps.Suggester.Suggestions(ctx),
	})
}

func (s *Server) handleConversations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.State.Conversations())
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.deps.State.Conversation(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type httpStatuser interface {
	HTTPStatus() int
}

// fail maps an application error to a response. Remote failures keep the
// backend's client-error status; anything else from the backend is a 502.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var validation *application.ValidationError
	var remote httpStatuser

	switch {
	case errors.As(err, &validation), errors.Is(err, application.ErrEmptyText):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, application.ErrUtteranceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, application.ErrNoActiveConversation):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrCaptureUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &remote):
		status := remote.HTTPStatus()
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		s.logger.Warn(op+" rejected by backend", "error", err)
		writeError(w, status, err.Error())
	default:
		s.logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
