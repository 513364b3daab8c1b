package application

import (
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"voice-companion/internal/domain"
)

// Per-message overhead of the chat format, in tokens.
const messageOverhead = 4

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tokenizer init failed, estimating by rune count", "error", err)
			return
		}
		enc = e
	})
	return enc
}

func countTokens(text string) int {
	if e := encoding(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	return runeLen(text)
}

// FitTranscript keeps the most recent messages whose combined size fits in
// budget tokens. Order is preserved. A non-positive budget keeps everything.
func FitTranscript(msgs []domain.Message, budget int) []domain.Message {
	if budget <= 0 {
		return msgs
	}

	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		n := countTokens(msgs[i].Text) + messageOverhead
		if total+n > budget {
			break
		}
		total += n
		start = i
	}
	return msgs[start:]
}
