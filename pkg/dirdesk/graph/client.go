package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mikepea/dirdesk/pkg/dirdesk/tokens"
)

// graphBaseURL is the default Microsoft Graph API base URL.
const graphBaseURL = "https://graph.microsoft.com/v1.0"

// defaultTimeout bounds every upstream call; a timeout is reported as
// ErrUpstreamUnavailable.
const defaultTimeout = 30 * time.Second

// TokenProvider supplies a currently-valid access token for a local user.
// Implemented by tokens.Manager.
type TokenProvider interface {
	AccessToken(ctx context.Context, userID uint) (string, error)
}

// Client is the facade over the upstream directory provider. One instance is
// constructed by the composition root and shared by the reconciliation
// engine and the workspace handlers.
type Client struct {
	tokens  TokenProvider
	httpc   *http.Client
	limiter *RateLimiter
	baseURL string
}

// NewClient creates a facade client talking to the real provider.
func NewClient(tokens TokenProvider) *Client {
	return NewClientWithBaseURL(tokens, graphBaseURL)
}

// NewClientWithBaseURL creates a client against an alternate base URL.
// Used by tests to point the facade at a fake provider.
func NewClientWithBaseURL(tokens TokenProvider, baseURL string) *Client {
	return &Client{
		tokens:  tokens,
		httpc:   &http.Client{Timeout: defaultTimeout},
		limiter: NewRateLimiter(DefaultRateLimit),
		baseURL: baseURL,
	}
}

// ListOptions controls paginated list calls. NextLink is the opaque
// continuation URL from a previous page; when set it takes precedence over
// any other option. PageSize is forwarded upstream as an upper bound, not a
// guarantee.
type ListOptions struct {
	PageSize int
	NextLink string
}

func (o ListOptions) top() int {
	if o.PageSize <= 0 || o.PageSize > 999 {
		return 100
	}
	return o.PageSize
}

// doJSON performs an authenticated request and decodes the JSON response
// into out. A nil out discards the body. Transport failures and 5xx map to
// ErrUpstreamUnavailable; 401 maps to ErrUnauthorized; token acquisition
// failures surface as ErrUnauthorized without an upstream call, except a
// token endpoint outage, which is reported as ErrUpstreamUnavailable so
// degradable reads fall back instead of demanding a reconnect.
func (c *Client) doJSON(ctx context.Context, userID uint, method, url string, body interface{}, out interface{}) error {
	token, err := c.tokens.AccessToken(ctx, userID)
	if err != nil {
		return wrapTokenError(err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		c.limiter.RecordRateLimitError(retryAfter)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if mapped := wrapStatus(resp.StatusCode); mapped != nil {
			return fmt.Errorf("request failed with status %d: %w", resp.StatusCode, mapped)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// wrapTokenError maps a token acquisition failure onto the facade's
// sentinels: an unreachable token endpoint is an availability problem, every
// other failure means the caller's credentials need attention.
func wrapTokenError(err error) error {
	if errors.Is(err, tokens.ErrRefreshUnavailable) {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrUnauthorized, err)
}

// doUpload performs an authenticated raw-body PUT (file content upload).
func (c *Client) doUpload(ctx context.Context, userID uint, url, contentType string, content []byte, out interface{}) error {
	token, err := c.tokens.AccessToken(ctx, userID)
	if err != nil {
		return wrapTokenError(err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if mapped := wrapStatus(resp.StatusCode); mapped != nil {
			return fmt.Errorf("upload failed with status %d: %w", resp.StatusCode, mapped)
		}
		return fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
