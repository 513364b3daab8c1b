package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Player plays raw 16-bit mono PCM. started is called once the first
// samples have been handed to the device.
type Player interface {
	Play(ctx context.Context, pcm []byte, sampleRate int, started func()) error
}

// FilePlayer writes each utterance as a WAV file instead of playing it.
// Used for headless runs and tests.
type FilePlayer struct {
	dir string
	now func() time.Time
}

func NewFilePlayer(dir string) *FilePlayer {
	return &FilePlayer{dir: dir, now: time.Now}
}

func (f *FilePlayer) Play(ctx context.Context, pcm []byte, sampleRate int, started func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	name := filepath.Join(f.dir, f.now().Format("20060102-150405.000000000")+".wav")
	if err := os.WriteFile(name, EncodeWAV(Samples(pcm), sampleRate), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if started != nil {
		started()
	}
	return nil
}
