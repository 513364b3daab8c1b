package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voice-companion/internal/infra"
)

const SampleRate = 16000

// Client synthesizes speech as raw 16-bit mono PCM at SampleRate.
type Client struct {
	apiKey     string
	voiceID    string
	model      string
	httpClient *http.Client
	baseURL    string
	retry      infra.RetryConfig
}

func NewClient(apiKey, voiceID, model string) *Client {
	return NewClientWithURL(apiKey, voiceID, model, "https://api.elevenlabs.io/v1")
}

func NewClientWithURL(apiKey, voiceID, model, baseURL string) *Client {
	if model == "" {
		model = "eleven_multilingual_v2"
	}
	return &Client{
		apiKey:     apiKey,
		voiceID:    voiceID,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		retry:      infra.DefaultRetryConfig(),
	}
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (c *Client) SampleRate() int {
	return SampleRate
}

func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	bodyBytes, err := json.Marshal(synthesisRequest{Text: text, ModelID: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=pcm_%d", c.baseURL, url.PathEscape(c.voiceID), SampleRate)

	var pcm []byte
	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("xi-api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			if infra.IsRetryableHTTPStatus(resp.StatusCode) {
				return fmt.Errorf("elevenlabs API error %d: %s (retryable)", resp.StatusCode, string(respBody))
			}
			return infra.Permanent(fmt.Errorf("elevenlabs API error %d: %s", resp.StatusCode, string(respBody)))
		}

		pcm = respBody
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	if len(pcm) == 0 {
		return nil, fmt.Errorf("empty audio from elevenlabs")
	}

	return pcm, nil
}
