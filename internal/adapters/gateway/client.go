// Package gateway is the HTTP client for the mobile-money payment gateway: C2B
// collections, status queries and B2C disbursements.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string

	// CollectionCallbackURL and DisbursementResultURL are sent with each request so the
	// gateway knows where to deliver outcomes.
	CollectionCallbackURL string
	DisbursementResultURL string
	Timeout               time.Duration
	TokenRefreshSkew      time.Duration
	RateLimit             float64
	RateBurst             int
	HTTPClient            *http.Client
}

// Client holds one cached access token. Callers share a single Client per process.
type Client struct {
	baseURL        string
	clientID       string
	clientSecret   string
	callbackURL    string
	resultURL      string
	refreshSkew    time.Duration
	httpClient     *http.Client
	limiter        *rate.Limiter
	nowFn          func() time.Time
	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("gateway client id and secret are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	skew := cfg.TokenRefreshSkew
	if skew <= 0 {
		skew = time.Minute
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:      base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		callbackURL:  cfg.CollectionCallbackURL,
		resultURL:    cfg.DisbursementResultURL,
		refreshSkew:  skew,
		httpClient:   httpClient,
		limiter:      rate.NewLimiter(limit, burst),
		nowFn:        func() time.Time { return time.Now().UTC() },
	}, nil
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// accessToken returns the cached token, fetching a new one when it is within the refresh
// skew of expiry. The mutex is held across the fetch so concurrent callers wait for one
// refresh.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.nowFn().Add(c.refreshSkew).Before(c.tokenExpiresAt) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	if err := statusError("token", resp); err != nil {
		return "", err
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", domain.ErrGatewayUnavailable, err)
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", fmt.Errorf("%w: access_token missing in token response", domain.ErrGatewayUnavailable)
	}
	seconds, err := out.ExpiresIn.Int64()
	if err != nil || seconds <= 0 {
		seconds = 3600
	}
	c.token = out.AccessToken
	c.tokenExpiresAt = c.nowFn().Add(time.Duration(seconds) * time.Second)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.tokenExpiresAt = time.Time{}
}

// do sends one authorized JSON request. A 401 drops the cached token and is retried once.
func (c *Client) do(ctx context.Context, operation, method, path string, body any, out any) ([]byte, error) {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", operation, err)
		}
		payload = raw
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s rate limit wait: %v", domain.ErrGatewayUnavailable, operation, err)
		}
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		started := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			logCall(ctx, operation, "failure", 0, time.Since(started), err)
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrGatewayUnavailable, operation, err)
		}
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.invalidateToken()
			continue
		}
		if err := statusErrorBody(operation, resp.StatusCode, raw); err != nil {
			logCall(ctx, operation, "failure", resp.StatusCode, time.Since(started), err)
			return nil, err
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: read %s response: %v", domain.ErrGatewayUnavailable, operation, readErr)
		}
		if out != nil {
			if err := json.Unmarshal(raw, out); err != nil {
				return nil, fmt.Errorf("%w: decode %s response: %v", domain.ErrGatewayUnavailable, operation, err)
			}
		}
		logCall(ctx, operation, "success", resp.StatusCode, time.Since(started), nil)
		return raw, nil
	}
}

func statusError(operation string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return statusErrorBody(operation, resp.StatusCode, body)
}

// statusErrorBody maps 5xx and 429 to ErrGatewayUnavailable and other 4xx to
// ErrGatewayRejected.
func statusErrorBody(operation string, status int, body []byte) error {
	if status >= 200 && status <= 299 {
		return nil
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 512 {
		snippet = snippet[:512]
	}
	if status >= 500 || status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s failed: status=%d body=%s", domain.ErrGatewayUnavailable, operation, status, snippet)
	}
	return fmt.Errorf("%w: %s failed: status=%d body=%s", domain.ErrGatewayRejected, operation, status, snippet)
}

func logCall(ctx context.Context, operation, outcome string, status int, elapsed time.Duration, err error) {
	level := slog.LevelDebug
	fields := []any{
		"service", "escrow-service",
		"module", "gateway",
		"layer", "adapter",
		"operation", operation,
		"outcome", outcome,
		"status_code", status,
		"duration_ms", elapsed.Milliseconds(),
	}
	if err != nil {
		level = slog.LevelWarn
		if errors.Is(err, domain.ErrGatewayRejected) {
			level = slog.LevelInfo
		}
		fields = append(fields, "error", err)
	}
	slog.Default().Log(ctx, level, "payment gateway call", fields...)
}
