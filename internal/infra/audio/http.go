package audio

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"voice-companion/internal/domain"
)

// PartnerSource receives the partner's replies over HTTP: recorded audio on
// POST /audio and typed text on POST /text. A reply is accepted only while a
// capture is waiting for it; each pending capture takes exactly one reply.
type PartnerSource struct {
	queue  chan []byte
	logger *slog.Logger
	router chi.Router

	mu      sync.Mutex
	running bool
	waiting int
}

func NewPartnerSource(logger *slog.Logger) *PartnerSource {
	p := &PartnerSource{
		queue:  make(chan []byte, 10),
		logger: logger,
	}

	r := chi.NewRouter()
	r.Post("/audio", p.handleAudio)
	r.Post("/text", p.handleText)
	r.Get("/health", p.handleHealth)
	p.router = r
	return p
}

func (p *PartnerSource) Name() string {
	return "http"
}

// Start begins accepting replies. Anything left over from an earlier
// conversation is discarded.
func (p *PartnerSource) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.drain()
	p.running = true
	p.logger.Info("partner input open")
	return nil
}

func (p *PartnerSource) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	p.drain()
	p.logger.Info("partner input closed")
	return nil
}

func (p *PartnerSource) drain() {
	for {
		select {
		case <-p.queue:
		default:
			return
		}
	}
}

func (p *PartnerSource) NextUtterance(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	p.waiting++
	p.mu.Unlock()

	select {
	case data := <-p.queue:
		return data, nil
	case <-ctx.Done():
		p.mu.Lock()
		if p.waiting > 0 {
			p.waiting--
		} else {
			// a reply was claimed for this capture just as it was cancelled
			select {
			case <-p.queue:
			default:
			}
		}
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Handler serves the partner endpoints; it is mounted by the control API.
func (p *PartnerSource) Handler() http.Handler {
	return p.router
}

func (p *PartnerSource) enqueue(w http.ResponseWriter, data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case !p.running:
		http.Error(w, "not listening", http.StatusConflict)
		return false
	case p.waiting == 0:
		http.Error(w, "not recording", http.StatusConflict)
		return false
	}

	select {
	case p.queue <- data:
		p.waiting--
		return true
	default:
		http.Error(w, "queue full, try again", http.StatusServiceUnavailable)
		return false
	}
}

func (p *PartnerSource) handleAudio(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 10*1024*1024))
	if err != nil {
		p.logger.Error("reading audio body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(data) == 0 {
		http.Error(w, "empty audio", http.StatusBadRequest)
		return
	}

	if !p.enqueue(w, data) {
		return
	}
	p.logger.Info("received partner audio", "bytes", len(data))
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "received", "bytes": len(data)})
}

func (p *PartnerSource) handleText(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	text := strings.TrimSpace(string(data))
	if text == "" {
		http.Error(w, "empty text", http.StatusBadRequest)
		return
	}

	if !p.enqueue(w, []byte(domain.TypedReplyPrefix+text)) {
		return
	}
	p.logger.Info("received partner text", "text", text)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "received", "text": text})
}

func (p *PartnerSource) handleHealth(w http.ResponseWriter, _ *http.Request) {
	p.mu.Lock()
	running := p.running
	recording := p.waiting > 0
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"listening": running,
		"recording": recording,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
