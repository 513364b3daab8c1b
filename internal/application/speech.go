package application

import (
	"context"
	"fmt"
)

// SpeechOutput speaks text aloud. started is called once audio playback
// has begun; it is never called if playback fails before that point.
type SpeechOutput interface {
	Speak(ctx context.Context, text string, started func()) error
}

type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// NoopSpeechOutput is used when no synthesizer or player is configured.
// Utterances are still logged, they are just not voiced.
type NoopSpeechOutput struct{}

func (n *NoopSpeechOutput) Speak(_ context.Context, _ string, _ func()) error {
	return nil
}

// NoopSTT is a no-op speech-to-text client for text-only partner input.
// It returns an error if called with actual audio data.
type NoopSTT struct{}

func (n *NoopSTT) Transcribe(_ context.Context, _ []byte) (string, error) {
	return "", fmt.Errorf("speech-to-text not configured: set openai.api_key to enable partner transcription")
}
