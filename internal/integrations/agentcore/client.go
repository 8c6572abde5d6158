package agentcore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"strategy-advisor/internal/domain"
)

// maxErrorBody caps how much of a non-2xx body is kept as detail.
const maxErrorBody = 4096

// ErrTransport marks failures below HTTP: DNS, connect, TLS, reset.
var ErrTransport = errors.New("agentcore: transport failure")

// ErrNoBody is returned when a successful response carries no body.
var ErrNoBody = errors.New("agentcore: no response body")

// HTTPStatusError captures non-2xx runtime responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("agentcore: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Invocation is an accepted call whose body is still streaming. The caller
// must close Body.
type Invocation struct {
	SessionID   string
	ContentType string
	Body        io.ReadCloser
}

// Client sends signed invocations to one agent runtime.
type Client struct {
	signer     *Signer
	httpClient *http.Client
	newSession func() string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithSessionIDs replaces the runtime session id generator.
func WithSessionIDs(gen func() string) Option {
	return func(c *Client) {
		c.newSession = gen
	}
}

// NewClient creates a Client. The default HTTP client has no timeout: the
// response is a long-lived stream and only ctx bounds it.
func NewClient(signer *Signer, opts ...Option) (*Client, error) {
	if signer == nil {
		return nil, errors.New("agentcore: signer must not be nil")
	}
	c := &Client{
		signer:     signer,
		httpClient: &http.Client{},
		newSession: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

// Invoke signs payload with creds, sends it, and returns the open body of a
// 2xx response. Non-2xx responses become *HTTPStatusError with the body text
// as detail.
func (c *Client) Invoke(ctx context.Context, creds domain.Credentials, payload any) (*Invocation, error) {
	sessionID := c.newSession()
	req, err := c.signer.Sign(ctx, creds, payload, WithSessionID(sessionID))
	if err != nil {
		return nil, err
	}

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer func() { _ = res.Body.Close() }()
		buf, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		detail := string(buf)
		if err != nil {
			detail = strings.TrimSpace(detail + " (error body unreadable: " + err.Error() + ")")
		}
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        req.URL.String(),
			Body:       detail,
		}
	}
	if res.Body == nil {
		return nil, ErrNoBody
	}

	return &Invocation{
		SessionID:   sessionID,
		ContentType: res.Header.Get("Content-Type"),
		Body:        res.Body,
	}, nil
}
