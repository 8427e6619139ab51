// Package jupiter is a client for the Jupiter price API. It implements
// pricing.Oracle: the reference asset is quoted in USD and every other token
// is quoted in the reference asset.
package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

const (
	// DefaultBaseURL is the public Jupiter API host.
	DefaultBaseURL = "https://api.jup.ag"

	defaultTimeout           = 10 * time.Second
	defaultRequestsPerSecond = 10
	maxBodyBytes             = 1 << 20
)

// ErrNoPrice is returned when the response carries no price for the token.
var ErrNoPrice = errors.New("jupiter: no price in response")

// Config configures a Client.
type Config struct {
	BaseURL string
	// APIKey is sent as x-api-key when set.
	APIKey string
	// ReferenceID is the mint whose price is returned in USD. Other tokens
	// are priced against it via vsToken.
	ReferenceID       string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client fetches prices from the Jupiter price endpoint.
type Client struct {
	cfg            Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	logger = logger.With(slog.String("component", "jupiter"))

	cbSettings := gobreaker.Settings{
		Name:        "JupiterPriceAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Client{
		cfg:            cfg,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:         logger,
	}
}

// priceResponse is the /price/v2 envelope. Price arrives as a JSON string,
// older deployments sent a number.
type priceResponse struct {
	Data map[string]*struct {
		ID    string          `json:"id"`
		Price json.RawMessage `json:"price"`
	} `json:"data"`
}

// FetchPrice returns the current price of tokenID. No retry is attempted.
func (c *Client) FetchPrice(ctx context.Context, tokenID string) (float64, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("jupiter: rate limiter: %w", err)
	}

	v, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, tokenID)
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (c *Client) fetch(ctx context.Context, tokenID string) (float64, error) {
	q := url.Values{}
	q.Set("ids", tokenID)
	if c.cfg.ReferenceID != "" && tokenID != c.cfg.ReferenceID {
		q.Set("vsToken", c.cfg.ReferenceID)
	}
	endpoint := c.cfg.BaseURL + "/price/v2?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("jupiter: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("jupiter: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, fmt.Errorf("jupiter: read body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, fmt.Errorf("jupiter: %w: %s", domain.ErrRateLimited, truncate(body, 256))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("jupiter: unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return 0, fmt.Errorf("jupiter: decode response: %w", err)
	}
	entry := pr.Data[tokenID]
	if entry == nil || len(entry.Price) == 0 || string(entry.Price) == "null" {
		return 0, fmt.Errorf("%w: %s", ErrNoPrice, tokenID)
	}

	price, err := parsePrice(entry.Price)
	if err != nil {
		return 0, fmt.Errorf("jupiter: price for %s: %w", tokenID, err)
	}

	c.logger.DebugContext(ctx, "price fetched",
		slog.String("token", tokenID),
		slog.Float64("price", price),
	)
	return price, nil
}

func parsePrice(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, err
		}
		s = str
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
