// Package registry resolves a license plate to a vehicle identity through a
// third-party registration data provider. Absence of a record is a normal
// outcome here, not a failure: the client retries through flaky responses
// and reports not-found once its attempts are spent.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"posterforge/internal/domain"
	"posterforge/internal/infra"
)

const (
	maxAttempts = 3
	retryDelay  = 1300 * time.Millisecond
	defaultBase = "https://api.checkcardetails.co.uk/vehicledata"
)

var plateCleaner = regexp.MustCompile(`[^A-Z0-9]`)

// Options configures the registry lookup client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Sleep      func(time.Duration)
}

// Client queries the vehicle registration provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *infra.Logger
	sleep      func(time.Duration)
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBase
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
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: httpClient,
		logger:     logger,
		sleep:      sleep,
	}, nil
}

type lookupResponse struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"yearOfManufacture"`
}

// Lookup resolves a plate to an identity. Up to 3 attempts spaced 1.3s
// apart; a non-2xx response or a 2xx body missing the make field both count
// as retryable misses. Exhausting the attempts returns found=false rather
// than an error. The only hard errors are invalid input and a cancelled
// context.
func (c *Client) Lookup(ctx context.Context, plate string) (domain.VehicleIdentity, bool, error) {
	normalized := NormalizePlate(plate)
	if normalized == "" {
		return domain.VehicleIdentity{}, false, fmt.Errorf("registry: plate is required")
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(retryDelay)
		}
		if err := ctx.Err(); err != nil {
			return domain.VehicleIdentity{}, false, err
		}
		identity, ok := c.lookupOnce(ctx, normalized, attempt)
		if ok {
			return identity, true, nil
		}
	}
	c.logger.Info().Str("plate", normalized).Msg("registry: no record after all attempts")
	return domain.VehicleIdentity{}, false, nil
}

func (c *Client) lookupOnce(ctx context.Context, plate string, attempt int) (domain.VehicleIdentity, bool) {
	endpoint := fmt.Sprintf("%s/vehicleregistration?%s", c.baseURL, url.Values{
		"apikey": {c.apiKey},
		"vrm":    {plate},
	}.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Error().Err(err).Msg("registry: build request")
		return domain.VehicleIdentity{}, false
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("registry: request failed")
		return domain.VehicleIdentity{}, false
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("registry: read response failed")
		return domain.VehicleIdentity{}, false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("registry: non-success response")
		return domain.VehicleIdentity{}, false
	}

	var decoded lookupResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("registry: decode response failed")
		return domain.VehicleIdentity{}, false
	}
	if strings.TrimSpace(decoded.Make) == "" {
		// A success response without a make is the provider's way of saying
		// it has nothing for this plate.
		return domain.VehicleIdentity{}, false
	}
	return domain.VehicleIdentity{
		Make:  strings.TrimSpace(decoded.Make),
		Model: strings.TrimSpace(decoded.Model),
		Year:  strings.TrimSpace(decoded.Year),
	}, true
}

// NormalizePlate uppercases and strips everything but letters and digits.
func NormalizePlate(plate string) string {
	return plateCleaner.ReplaceAllString(strings.ToUpper(strings.TrimSpace(plate)), "")
}
