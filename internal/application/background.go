package application

import (
	"context"
	"log/slog"
	"sync"
)

// Background runs fire-and-forget work. Failures go to the logger, never to
// the caller that started the task.
type Background struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewBackground(logger *slog.Logger) *Background {
	ctx, cancel := context.WithCancel(context.Background())
	return &Background{ctx: ctx, cancel: cancel, logger: logger}
}

func (b *Background) Go(name string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := fn(b.ctx); err != nil && b.ctx.Err() == nil {
			b.logger.Warn("background task failed", "task", name, "error", err)
		}
	}()
}

// Wait blocks until every started task, including tasks started by other
// tasks, has returned.
func (b *Background) Wait() {
	b.wg.Wait()
}

func (b *Background) Close() {
	b.cancel()
	b.wg.Wait()
}
