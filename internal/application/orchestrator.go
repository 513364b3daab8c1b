package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"voice-companion/internal/domain"
)

// TurnConfig bounds how long the orchestrator waits for a capture-arming
// callback after playback starts.
type TurnConfig struct {
	SettleDelay  time.Duration
	PollInterval time.Duration
	MaxAttempts  int
	ArmDelay     time.Duration
}

func DefaultTurnConfig() TurnConfig {
	return TurnConfig{
		SettleDelay:  300 * time.Millisecond,
		PollInterval: 100 * time.Millisecond,
		MaxAttempts:  20,
		ArmDelay:     500 * time.Millisecond,
	}
}

// Budget is the longest the orchestrator waits for a callback to register.
func (c TurnConfig) Budget() time.Duration {
	return c.PollInterval * time.Duration(c.MaxAttempts)
}

// ConversationSaver mirrors an archived conversation to the backend.
type ConversationSaver interface {
	SaveConversation(ctx context.Context, conv domain.Conversation) error
}

// Orchestrator drives turn-taking: it voices the user's utterance and then
// arms speech capture for the partner's reply.
type Orchestrator struct {
	state  *State
	output SpeechOutput
	saver  ConversationSaver
	turn   TurnConfig
	tasks  *Background
	logger *slog.Logger
}

func NewOrchestrator(
	state *State,
	output SpeechOutput,
	saver ConversationSaver,
	turn TurnConfig,
	logger *slog.Logger,
) *Orchestrator {
	if output == nil {
		output = &NoopSpeechOutput{}
	}
	return &Orchestrator{
		state:  state,
		output: output,
		saver:  saver,
		turn:   turn,
		tasks:  NewBackground(logger),
		logger: logger,
	}
}

// Speak logs text as an utterance, adds it to the conversation (starting one
// if needed) and voices it. Playback and turn-taking run in the background;
// their failures are logged only.
func (o *Orchestrator) Speak(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	conv, started := o.state.RecordSelfUtterance(text)
	if started {
		o.logger.Info("conversation started", "conversation", conv.ID, "title", conv.Title)
	}

	o.tasks.Go("speech output", func(ctx context.Context) error {
		return o.output.Speak(ctx, text, func() {
			o.tasks.Go("turn taking", o.takeTurn)
		})
	})
	return nil
}

func (o *Orchestrator) takeTurn(ctx context.Context) error {
	if !sleep(ctx, o.turn.SettleDelay) {
		return nil
	}

	arm, ok := o.state.CaptureSlot().Await(ctx, o.turn.Budget())
	if !ok {
		o.logger.Info("capture callback not registered in time, skipping auto capture",
			"budget", o.turn.Budget(),
		)
		return nil
	}

	if !sleep(ctx, o.turn.ArmDelay) {
		return nil
	}

	o.logger.Debug("arming speech capture")
	arm()
	return nil
}

// EndConversation archives the active conversation. The remote save runs in
// the background and never affects the local archive.
func (o *Orchestrator) EndConversation() error {
	conv, ok := o.state.ArchiveActive()
	if !ok {
		return ErrNoActiveConversation
	}

	o.logger.Info("conversation ended", "conversation", conv.ID, "messages", len(conv.Messages))

	if o.saver != nil {
		o.tasks.Go("save conversation", func(ctx context.Context) error {
			return o.saver.SaveConversation(ctx, conv)
		})
	}
	return nil
}

// OnCaptureResult records a transcribed partner reply. Without an active
// conversation it does nothing.
func (o *Orchestrator) OnCaptureResult(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if !o.state.AppendPartnerMessage(text) {
		o.logger.Debug("capture result without active conversation, dropped")
	}
}

// StartCapture arms capture on demand, bypassing the turn-taking wait.
func (o *Orchestrator) StartCapture() error {
	if _, ok := o.state.ActiveConversation(); !ok {
		return ErrNoActiveConversation
	}
	arm := o.state.CaptureSlot().Current()
	if arm == nil {
		return ErrCaptureUnavailable
	}
	arm()
	return nil
}

// Wait blocks until background playback, turn-taking and sync tasks finish.
func (o *Orchestrator) Wait() {
	o.tasks.Wait()
}

func (o *Orchestrator) Close() {
	o.tasks.Close()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
