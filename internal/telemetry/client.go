package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"codeberg.org/mutker/statehook/internal/errors"
	"codeberg.org/mutker/statehook/internal/state"
	"golang.org/x/time/rate"
)

const maxResponseBodySize = 1 << 20 // 1MB

const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 4
	defaultIdleConnTimeout     = 60 * time.Second
)

// response is the raw outcome of one HTTP call.
type response struct {
	Body       []byte
	StatusCode int
}

// Client talks to the two remote endpoints: the telemetry source it polls and
// the action sink it triggers. Every call carries its own timeout.
type Client struct {
	httpClient   *http.Client
	telemetryURL string
	actionURL    string
	timeout      time.Duration
	limiter      *rate.Limiter
}

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithActionRateLimit caps action calls at perSecond. Zero or less disables
// the limit.
func WithActionRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a Client. Action calls go to actionURL with the action
// name appended verbatim.
func NewClient(telemetryURL, actionURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			// no client-wide timeout; each call gets its own context deadline
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		telemetryURL: telemetryURL,
		actionURL:    actionURL,
		timeout:      timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch polls the telemetry endpoint and parses the body into a Snapshot.
// Transport failures, timeouts, non-2xx statuses and bodies that are not a
// JSON object all return an ErrFetchFailed error.
func (c *Client) Fetch(ctx context.Context) (state.Snapshot, error) {
	errFactory := errors.New()

	resp, err := c.get(ctx, c.telemetryURL, true)
	if err != nil {
		return state.Snapshot{}, errFactory.Wrap(errors.ErrFetchFailed, err)
	}
	if !isSuccess(resp.StatusCode) {
		return state.Snapshot{}, errFactory.WithData(errors.ErrFetchFailed,
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	snap, err := state.ParseSnapshot(resp.Body)
	if err != nil {
		return state.Snapshot{}, errFactory.Wrap(errors.ErrFetchFailed, err)
	}
	return snap, nil
}

// Trigger calls the action endpoint for action and returns the response
// status. The body is discarded. A non-2xx status is returned together with
// an ErrActionFailed error; a status of 0 means no response was received.
func (c *Client) Trigger(ctx context.Context, action string) (int, error) {
	errFactory := errors.New()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, errFactory.Wrap(errors.ErrActionFailed, err).WithData(action)
		}
	}

	resp, err := c.get(ctx, c.actionURL+action, false)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrActionFailed, err).WithData(action)
	}
	if !isSuccess(resp.StatusCode) {
		return resp.StatusCode, errFactory.WithData(errors.ErrActionFailed,
			fmt.Sprintf("%s: status %d", action, resp.StatusCode))
	}
	return resp.StatusCode, nil
}

// ActionTarget returns the URL an action call for action goes to.
func (c *Client) ActionTarget(action string) string {
	return c.actionURL + action
}

func (c *Client) get(ctx context.Context, url string, keepBody bool) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return response{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return response{}, errors.New().Wrap(errors.ErrTimeout, err)
		}
		return response{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !keepBody {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
		return response{StatusCode: resp.StatusCode}, nil
	}

	// one extra byte to detect oversized bodies
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
	if err != nil {
		return response{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxResponseBodySize {
		return response{}, fmt.Errorf("response body exceeds %d bytes", maxResponseBodySize)
	}

	return response{
		Body:       body,
		StatusCode: resp.StatusCode,
	}, nil
}

// Close releases idle connections. The client stays usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
