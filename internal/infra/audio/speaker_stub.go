//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
)

// Speaker stub when portaudio is not available
type Speaker struct{}

func NewSpeaker() *Speaker {
	return &Speaker{}
}

func (s *Speaker) Play(_ context.Context, _ []byte, _ int, _ func()) error {
	return fmt.Errorf("speaker not available: rebuild with -tags portaudio or use the file player")
}
