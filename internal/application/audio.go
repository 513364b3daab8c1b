package application

import "context"

// AudioSource delivers the partner's spoken replies, one utterance at a time.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	NextUtterance(ctx context.Context) ([]byte, error)
	Name() string
}
