// Package submit talks to the tax authority. It selects the clearance
// or reporting endpoint by document type and maps responses onto the
// pipeline error taxonomy: business rejections and 4xx are terminal,
// 5xx and transport failures retry with capped exponential backoff.
package submit

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/model"
)

// Defaults for the retry policy
const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 500 * time.Millisecond
)

// Client submits invoices to the authority
type Client struct {
	baseURL    string
	httpClient *http.Client
	authHeader string
	maxRetries uint64
	interval   time.Duration
	log        *logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithBasicAuth authenticates with authority-issued basic credentials
func WithBasicAuth(username, secret string) Option {
	return func(c *Client) {
		token := base64.StdEncoding.EncodeToString([]byte(username + ":" + secret))
		c.authHeader = "Basic " + token
	}
}

// WithBearerToken authenticates with a bearer token
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.authHeader = "Bearer " + token
	}
}

// WithMaxRetries bounds the retry attempts for retryable failures
func WithMaxRetries(n uint64) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithInitialInterval sets the first backoff interval
func WithInitialInterval(d time.Duration) Option {
	return func(c *Client) {
		c.interval = d
	}
}

// WithLogger sets the client logger
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a submission client for an authority base URL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		interval:   DefaultInitialInterval,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts the invoice and retries retryable failures. The caller's
// ledger state is untouched across retries; only the returned outcome
// decides whether the chain advances.
func (c *Client) Submit(ctx context.Context, docType model.DocumentType, req *Request) (*Outcome, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.interval

	operation := func() (*Outcome, error) {
		return c.submitOnce(ctx, docType, req)
	}

	outcome, err := backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (c *Client) submitOnce(ctx context.Context, docType model.DocumentType, req *Request) (*Outcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, backoff.Permanent(model.NewNetworkError(0, "failed to encode request", false, err))
	}

	url := c.baseURL + PathFor(docType)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(model.NewNetworkError(0, "failed to build request", false, err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Version", "V2")
	if docType == model.DocumentTypeStandard {
		httpReq.Header.Set("Clearance-Status", "1")
	}
	if c.authHeader != "" {
		httpReq.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// transport failure or timeout: retryable
		c.log.Warnw("authority request failed", "uuid", req.UUID, "error", err)
		return nil, model.NewNetworkError(0, "authority unreachable", true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewNetworkError(resp.StatusCode, "failed to read authority response", true, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return c.decodeAccepted(req, resp.StatusCode, respBody)

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// malformed request: an integration bug, never retried
		c.log.Errorw("authority rejected request as malformed",
			"uuid", req.UUID, "status", resp.StatusCode, "body", string(respBody))
		return nil, backoff.Permanent(model.NewNetworkError(
			resp.StatusCode, string(respBody), false, nil))

	default:
		c.log.Warnw("authority server error", "uuid", req.UUID, "status", resp.StatusCode)
		return nil, model.NewNetworkError(resp.StatusCode, string(respBody), true, nil)
	}
}

func (c *Client) decodeAccepted(req *Request, status int, body []byte) (*Outcome, error) {
	var parsed authorityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, backoff.Permanent(model.NewNetworkError(
			status, "authority response is not valid JSON", false, err))
	}

	if !parsed.accepted() {
		// business validation failure: terminal, surfaced verbatim
		return nil, backoff.Permanent(model.NewRejectionError(parsed.reason(), parsed.Warnings))
	}

	c.log.Infow("invoice accepted by authority",
		"uuid", req.UUID, "counter", req.InvoiceCounterValue, "status", parsed.status())
	return &Outcome{
		Accepted: true,
		Status:   parsed.status(),
		Warnings: parsed.Warnings,
	}, nil
}
