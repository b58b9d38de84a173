// Package vision identifies a vehicle from a photo via the Gemini
// multimodal API. Identification is best effort: an image the model cannot
// read yields empty fields, never an error. Only transport and auth
// failures surface as errors.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"posterforge/internal/domain"
	"posterforge/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("vision: api key is required")

const (
	maxAttempts   = 3
	retryDelay    = time.Second
	defaultModel  = "gemini-1.5-flash"
	defaultBase   = "https://generativelanguage.googleapis.com/v1beta"
	promptText    = "Identify the vehicle in this photo. Reply with JSON only: {\"plate\": \"...\", \"make\": \"...\", \"model\": \"...\", \"year\": \"...\"}. Use empty strings for anything you cannot read."
	maxImageBytes = 8 << 20
)

// Options configures the Gemini vision client.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Sleep      func(time.Duration)
}

// Identification is the normalized result of one vision call. A photo the
// model could not read yields the zero value, which is not an error.
type Identification struct {
	Plate string
	Car   domain.VehicleIdentity
}

// Client performs HTTP calls to the Gemini generateContent API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	sleep      func(time.Duration)
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBase
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
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
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
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
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

type identificationPayload struct {
	Plate string `json:"plate"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

// errOverloaded marks a transient capacity rejection worth retrying.
var errOverloaded = errors.New("vision: service overloaded")

// Identify submits the image and returns the model's best guess. A transient
// "overloaded" rejection is retried up to 3 attempts with a fixed one-second
// delay; any other failure class surfaces immediately.
func (c *Client) Identify(ctx context.Context, imageData []byte, mimeType string) (Identification, error) {
	if c.apiKey == "" {
		return Identification{}, ErrMissingAPIKey
	}
	if len(imageData) == 0 {
		return Identification{}, fmt.Errorf("%w: empty image", domain.ErrIdentification)
	}
	if len(imageData) > maxImageBytes {
		return Identification{}, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrIdentification, maxImageBytes)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(retryDelay)
		}
		ident, err := c.identifyOnce(ctx, imageData, mimeType)
		if err == nil {
			return ident, nil
		}
		lastErr = err
		if !errors.Is(err, errOverloaded) {
			return Identification{}, err
		}
		c.logger.Warn().Int("attempt", attempt).Msg("vision: service overloaded, retrying")
	}
	return Identification{}, fmt.Errorf("%w: %v", domain.ErrIdentification, lastErr)
}

func (c *Client) identifyOnce(ctx context.Context, imageData []byte, mimeType string) (Identification, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: promptText},
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(imageData),
				}},
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Identification{}, fmt.Errorf("vision: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Identification{}, fmt.Errorf("vision: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Identification{}, fmt.Errorf("%w: %v", domain.ErrIdentification, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Identification{}, fmt.Errorf("%w: read response: %v", domain.ErrIdentification, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return Identification{}, errOverloaded
	}
	if resp.StatusCode >= 300 {
		var decoded geminiResponse
		_ = json.Unmarshal(raw, &decoded)
		if decoded.Error != nil {
			if decoded.Error.Status == "RESOURCE_EXHAUSTED" || decoded.Error.Status == "UNAVAILABLE" {
				return Identification{}, errOverloaded
			}
			return Identification{}, fmt.Errorf("%w: %s (%s)", domain.ErrIdentification, decoded.Error.Message, decoded.Error.Status)
		}
		return Identification{}, fmt.Errorf("%w: http %d", domain.ErrIdentification, resp.StatusCode)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Identification{}, fmt.Errorf("%w: decode response: %v", domain.ErrIdentification, err)
	}
	return parseIdentification(decoded), nil
}

// parseIdentification extracts the structured guess from the model's reply.
// A reply that cannot be parsed is a miss, not an error.
func parseIdentification(resp geminiResponse) Identification {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			text := stripCodeFence(part.Text)
			var decoded identificationPayload
			if err := json.Unmarshal([]byte(text), &decoded); err != nil {
				continue
			}
			return Identification{
				Plate: strings.ToUpper(strings.TrimSpace(decoded.Plate)),
				Car: domain.VehicleIdentity{
					Make:  strings.TrimSpace(decoded.Make),
					Model: strings.TrimSpace(decoded.Model),
					Year:  strings.TrimSpace(decoded.Year),
				},
			}
		}
	}
	return Identification{}
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
