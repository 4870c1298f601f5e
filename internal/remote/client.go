// Package remote talks to the user backend and transparently substitutes
// the local directory whenever the backend cannot serve a request.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
	"github.com/EO-DataHub/eodhp-user-admin/models"
)

// MockFallbackMessage is the message of a status change served locally.
const MockFallbackMessage = "User status updated (mock)"

const (
	opList   = "list_users"
	opUpdate = "update_status"
)

// Client reads and updates users through the backend API, falling back to
// a local directory on any transport error or non-2xx response.
type Client struct {
	baseURL  string
	http     *http.Client
	fallback directory.Store
	log      zerolog.Logger

	token         string
	debug         bool
	retries       int
	retryInterval time.Duration
}

// NewClient creates a client for the API rooted at baseURL (for example
// http://localhost:8080/api). fallback may be nil, in which case backend
// failures are returned to the caller.
func NewClient(baseURL string, fallback directory.Store, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: 10 * time.Second},
		fallback:      fallback,
		log:           log.With().Str("component", "remote").Logger(),
		debug:         debugLoggingRequested(),
		retryInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.wrapTransport()
	return c, nil
}

func (c *Client) wrapTransport() {
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if c.debug {
		base = &debugTransport{base: base}
	}
	if c.token != "" {
		base = &bearerTransport{base: base, token: c.token}
	}
	c.http.Transport = otelhttp.NewTransport(base)
}

// FetchList returns one page of users. The query and status parameters are
// only sent when they constrain the result.
func (c *Client) FetchList(ctx context.Context, params models.ListParams) (models.ListResult, error) {
	var resp models.ListResponse
	err := c.withRetry(ctx, func() error {
		return c.do(ctx, http.MethodGet, "/users", ListQuery(params), nil, &resp)
	})
	if err == nil {
		remoteRequestsTotal.WithLabelValues(opList, "success").Inc()
		if resp.Data.Users == nil {
			resp.Data.Users = []models.User{}
		}
		return resp.Data, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.ListResult{}, ctxErr
	}
	remoteRequestsTotal.WithLabelValues(opList, "failure").Inc()

	if c.fallback == nil {
		return models.ListResult{}, fmt.Errorf("list users: %w", err)
	}
	c.warnFallback(opList, err).Msg("API unavailable. Falling back to mock users data.")

	result, ferr := c.fallback.List(ctx, params)
	if ferr != nil {
		return models.ListResult{}, fmt.Errorf("list users: backend: %v: local directory: %w", err, ferr)
	}
	return result, nil
}

// UpdateStatus changes one user's status. When the backend fails the local
// directory is updated instead; ErrNotFound means neither knows the user.
func (c *Client) UpdateStatus(ctx context.Context, userID string, status models.Status) (models.UpdateStatusResult, error) {
	if !status.Valid() {
		return models.UpdateStatusResult{}, fmt.Errorf("invalid status %q", status)
	}

	var resp models.UserResponse
	err := c.withRetry(ctx, func() error {
		return c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(userID), nil,
			models.UpdateStatusRequest{Status: status}, &resp)
	})
	if err == nil {
		remoteRequestsTotal.WithLabelValues(opUpdate, "success").Inc()
		return models.UpdateStatusResult{Success: true, User: resp.Data, Message: resp.Message}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.UpdateStatusResult{}, ctxErr
	}
	remoteRequestsTotal.WithLabelValues(opUpdate, "failure").Inc()

	if c.fallback == nil {
		return models.UpdateStatusResult{}, fmt.Errorf("update status of %s: %w", userID, err)
	}
	c.warnFallback(opUpdate, err).Str("user_id", userID).Msg("API unavailable. Using mock status update.")

	user, ferr := c.fallback.UpdateStatus(ctx, userID, status)
	if ferr != nil {
		return models.UpdateStatusResult{}, fmt.Errorf("update status of %s: %w", userID, ferr)
	}
	return models.UpdateStatusResult{Success: true, User: user, Message: MockFallbackMessage}, nil
}

// ListQuery encodes params as URL query values. The "all" status filter is
// never transmitted.
func ListQuery(params models.ListParams) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("pageSize", strconv.Itoa(params.PageSize))
	if params.Query != "" {
		q.Set("query", params.Query)
	}
	if params.Status != "" && params.Status != models.StatusFilterAll {
		q.Set("status", string(params.Status))
	}
	return q
}

func (c *Client) warnFallback(op string, err error) *zerolog.Event {
	fallbacksTotal.WithLabelValues(op).Inc()
	return c.log.Warn().Err(err).Str("operation", op).Str("fallback", "local")
}

// withRetry runs fn once plus up to c.retries more times while the failure
// is retryable.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	if c.retries == 0 {
		return fn()
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryInterval
	exp.Multiplier = 2
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.retries)), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr models.ErrorResponse
		if jsonErr := json.Unmarshal(respBody, &apiErr); jsonErr != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(respBody))
		}
		return &HTTPError{Message: apiErr.Error, Status: resp.StatusCode}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
