package application

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyText            = errors.New("text is empty")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrUtteranceNotFound    = errors.New("utterance not found")
	ErrCaptureUnavailable   = errors.New("speech capture not available")
	ErrMissingCredential    = errors.New("api credential not configured")
	ErrMalformedSuggestions = errors.New("malformed suggestions response")
)

// ValidationError reports a required field left empty. It is raised before
// any network call is made.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}
