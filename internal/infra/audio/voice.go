package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	SampleRate() int
}

// Voice speaks text by synthesizing it and handing the PCM to a Player.
// Starting a new utterance cuts off the one still playing.
type Voice struct {
	synth  Synthesizer
	player Player
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

func NewVoice(synth Synthesizer, player Player, logger *slog.Logger) *Voice {
	return &Voice{synth: synth, player: player, logger: logger}
}

func (v *Voice) Speak(ctx context.Context, text string, started func()) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("nothing to speak")
	}

	ctx, cancel := context.WithCancel(ctx)
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.cancel = cancel
	v.seq++
	seq := v.seq
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		if v.seq == seq {
			v.cancel = nil
		}
		v.mu.Unlock()
		cancel()
	}()

	pcm, err := v.synth.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesizing: %w", err)
	}

	v.logger.Debug("playing utterance", "bytes", len(pcm))
	if err := v.player.Play(ctx, pcm, v.synth.SampleRate(), started); err != nil {
		return fmt.Errorf("playing: %w", err)
	}
	return nil
}

// Stop cuts off whatever is playing.
func (v *Voice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}
