package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voice-companion/internal/domain"
)

const DefaultRestartDelay = 100 * time.Millisecond

// Listener owns the partner-side microphone while a conversation is active.
// When a conversation starts it brings the audio source up and registers its
// arm callback in the capture slot; when the conversation ends it tears
// everything down again.
type Listener struct {
	state        *State
	source       AudioSource
	stt          SpeechToText
	onResult     func(text string)
	logger       *slog.Logger
	restartDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	mounted bool
	gen     uint64
	stopRec context.CancelFunc
}

func NewListener(
	state *State,
	source AudioSource,
	stt SpeechToText,
	onResult func(text string),
	logger *slog.Logger,
) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		state:        state,
		source:       source,
		stt:          stt,
		onResult:     onResult,
		logger:       logger,
		restartDelay: DefaultRestartDelay,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetRestartDelay changes the pause between stopping a capture and starting
// the next one.
func (l *Listener) SetRestartDelay(d time.Duration) {
	l.restartDelay = d
}

// Attach subscribes the listener to conversation lifecycle events. If a
// conversation is already active it is mounted immediately.
func (l *Listener) Attach() {
	l.state.Subscribe(l.handle)
	if _, ok := l.state.ActiveConversation(); ok {
		l.goMount()
	}
}

func (l *Listener) handle(ev Event) {
	switch ev.Kind {
	case EventConversationStarted:
		l.goMount()
	case EventConversationEnded:
		l.unmount()
	}
}

func (l *Listener) goMount() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.mount(); err != nil {
			l.logger.Warn("speech capture unavailable", "source", l.source.Name(), "error", err)
		}
	}()
}

func (l *Listener) mount() error {
	l.mu.Lock()
	if l.mounted {
		l.mu.Unlock()
		return nil
	}
	l.mounted = true
	l.mu.Unlock()

	if err := l.source.Start(l.ctx); err != nil {
		l.mu.Lock()
		l.mounted = false
		l.mu.Unlock()
		return fmt.Errorf("starting audio source: %w", err)
	}

	// The conversation may have ended while the source was starting.
	if !l.state.Listening() {
		l.mu.Lock()
		l.mounted = false
		l.mu.Unlock()
		if err := l.source.Stop(); err != nil {
			l.logger.Warn("stopping audio source", "error", err)
		}
		return nil
	}

	l.state.CaptureSlot().Register(l.Arm)
	l.logger.Debug("capture callback registered", "source", l.source.Name())
	return nil
}

func (l *Listener) unmount() {
	l.StopRecording()

	l.mu.Lock()
	wasMounted := l.mounted
	l.mounted = false
	l.mu.Unlock()

	l.state.CaptureSlot().Clear()
	if wasMounted {
		if err := l.source.Stop(); err != nil {
			l.logger.Warn("stopping audio source", "error", err)
		}
	}
}

// Arm stops any capture in progress and, after a short pause, starts a new
// one if the conversation is still listening.
func (l *Listener) Arm() {
	l.StopRecording()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if !sleep(l.ctx, l.restartDelay) {
			return
		}
		if !l.state.Listening() {
			return
		}
		l.record()
	}()
}

// StopRecording cancels the capture in progress, if any.
func (l *Listener) StopRecording() {
	l.mu.Lock()
	stop := l.stopRec
	l.stopRec = nil
	l.gen++
	l.mu.Unlock()

	if stop != nil {
		stop()
	}
	l.state.SetRecording(false)
}

func (l *Listener) record() {
	ctx, cancel := context.WithCancel(l.ctx)

	l.mu.Lock()
	if l.stopRec != nil {
		l.stopRec()
	}
	l.gen++
	gen := l.gen
	l.stopRec = cancel
	l.mu.Unlock()

	l.state.SetRecording(true)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.finish(gen, cancel)

		text, err := l.captureOne(ctx)
		if err != nil {
			if ctx.Err() == nil {
				l.logger.Warn("speech capture failed", "source", l.source.Name(), "error", err)
			}
			return
		}
		if text != "" {
			l.logger.Info("partner reply captured", "text", text)
			l.onResult(text)
		}
	}()
}

func (l *Listener) finish(gen uint64, cancel context.CancelFunc) {
	cancel()

	l.mu.Lock()
	current := l.gen == gen
	if current {
		l.stopRec = nil
	}
	l.mu.Unlock()

	if current {
		l.state.SetRecording(false)
	}
}

func (l *Listener) captureOne(ctx context.Context) (string, error) {
	data, err := l.source.NextUtterance(ctx)
	if err != nil {
		return "", fmt.Errorf("getting audio: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}

	if text, ok := domain.TypedReply(data); ok {
		return text, nil
	}

	text, err := l.stt.Transcribe(ctx, data)
	if err != nil {
		return "", fmt.Errorf("transcribing: %w", err)
	}
	return text, nil
}

// Close tears the listener down and waits for its goroutines.
func (l *Listener) Close() {
	l.unmount()
	l.cancel()
	l.wg.Wait()
}
