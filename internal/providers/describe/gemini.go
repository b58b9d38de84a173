// Package describe turns a vehicle identity into the short descriptive prose
// printed on the poster. One remote attempt per request, no retries: a
// failed description is cheap for the caller to re-request.
package describe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"posterforge/internal/domain"
	"posterforge/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("describe: api key is required")

const (
	defaultModel    = "gemini-1.5-flash"
	defaultBase     = "https://generativelanguage.googleapis.com/v1beta"
	maxOutputRunes  = 280
	debounceWindow  = time.Second
	promptTemplate  = "Write one enthusiastic sentence, at most 40 words, describing a %s for a car poster. Plain text only, no hashtags."
	fallbackPattern = "The %s. A machine worth framing."
)

// Options configures the Gemini text client.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Now        func() time.Time
	Sleep      func(time.Duration)
}

// Client generates poster copy. Rapid consecutive calls are debounced: a
// repeat of the last identity returns the cached text, and a changed
// identity waits out the remainder of the one-second window since the last
// successful generation before going remote.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	now        func() time.Time
	sleep      func(time.Duration)

	mu          sync.Mutex
	lastKey     string
	lastText    string
	lastSuccess time.Time
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBase
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
		now:        now,
		sleep:      sleep,
	}, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Describe returns poster copy for the given identity. Single remote
// attempt; failures surface as domain.ErrDescription.
func (c *Client) Describe(ctx context.Context, car domain.VehicleIdentity) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if car.Empty() {
		return "", fmt.Errorf("%w: vehicle identity is empty", domain.ErrDescription)
	}

	key := car.Key()
	c.mu.Lock()
	if key == c.lastKey && c.lastText != "" {
		text := c.lastText
		c.mu.Unlock()
		return text, nil
	}
	if wait := debounceWindow - c.now().Sub(c.lastSuccess); !c.lastSuccess.IsZero() && wait > 0 {
		c.mu.Unlock()
		c.sleep(wait)
	} else {
		c.mu.Unlock()
	}

	text, err := c.describeOnce(ctx, car)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.lastKey = key
	c.lastText = text
	c.lastSuccess = c.now()
	c.mu.Unlock()
	return text, nil
}

func (c *Client) describeOnce(ctx context.Context, car domain.VehicleIdentity) (string, error) {
	subject := strings.TrimSpace(strings.Join([]string{car.Year, car.Make, car.Model}, " "))
	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: fmt.Sprintf(promptTemplate, subject)}},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("describe: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("describe: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDescription, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrDescription, err)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrDescription, err)
	}
	if resp.StatusCode >= 300 {
		if decoded.Error != nil {
			return "", fmt.Errorf("%w: %s (%s)", domain.ErrDescription, decoded.Error.Message, decoded.Error.Status)
		}
		return "", fmt.Errorf("%w: http %d", domain.ErrDescription, resp.StatusCode)
	}

	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			text := clampText(part.Text)
			if text != "" {
				return text, nil
			}
		}
	}
	// The model produced nothing usable; hand back deterministic copy so the
	// poster never ships with an empty caption.
	c.logger.Warn().Str("subject", subject).Msg("describe: empty model reply, using fallback copy")
	return fmt.Sprintf(fallbackPattern, subject), nil
}

func clampText(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxOutputRunes {
		return text
	}
	clipped := string(runes[:maxOutputRunes])
	if idx := strings.LastIndex(clipped, " "); idx > 0 {
		clipped = clipped[:idx]
	}
	return strings.TrimRight(clipped, ",;:") + "."
}
