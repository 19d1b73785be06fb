// Package http implements lunarys.Backend against the Lunarys chat server.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/lunarys"
	lunarysjson "github.com/fwojciec/lunarys/json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL    = "http://localhost:8080"
	chatPath          = "/api/chat"
	streamPath        = "/api/chat/stream"
	conversationsPath = "/api/conversations"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4096
)

// Interface compliance check.
var _ lunarys.Backend = (*Client)(nil)

// Client implements [lunarys.Backend] over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logrus.FieldLogger
	timeout    time.Duration
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the server base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds every call except streaming, which runs until the
// server ends it or the caller cancels. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a [Client] with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     lunarys.DiscardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.WithField("component", "http")
	return c
}

// Stream opens a server-sent event stream for req. The stream reads until
// the server closes the body or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, req lunarys.Request) (lunarys.Stream, error) {
	body, err := c.encode(req)
	if err != nil {
		return nil, err
	}
	httpReq, log, err := c.newRequest(ctx, http.MethodPost, streamPath, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	if !success(resp.StatusCode) {
		defer resp.Body.Close()
		err := parseHTTPError(resp)
		log.WithError(err).Warn("stream request rejected")
		return nil, err
	}
	log.Debug("stream opened")
	return newStream(ctx, resp.Body, log), nil
}

// Send performs a one-shot exchange.
func (c *Client) Send(ctx context.Context, req lunarys.Request) (lunarys.Reply, error) {
	body, err := c.encode(req)
	if err != nil {
		return lunarys.Reply{}, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	data, err := c.do(ctx, http.MethodPost, chatPath, body)
	if err != nil {
		return lunarys.Reply{}, err
	}
	reply, err := lunarysjson.UnmarshalChatReply(data)
	if err != nil {
		return lunarys.Reply{}, fmt.Errorf("http: %w", err)
	}
	return reply, nil
}

// ListConversations fetches every conversation. Any failure wraps
// [lunarys.ErrUnavailable].
func (c *Client) ListConversations(ctx context.Context) ([]lunarys.Conversation, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	data, err := c.do(ctx, http.MethodGet, conversationsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w: %w", lunarys.ErrUnavailable, err)
	}
	convs, err := lunarysjson.UnmarshalConversations(data)
	if err != nil {
		return nil, fmt.Errorf("http: list conversations: %w: %w", lunarys.ErrUnavailable, err)
	}
	return convs, nil
}

// ListMessages fetches the history of conversation id. Any failure wraps
// [lunarys.ErrUnavailable].
func (c *Client) ListMessages(ctx context.Context, id int64) ([]lunarys.Message, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	data, err := c.do(ctx, http.MethodGet, conversationPath(id)+"/messages", nil)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w: %w", lunarys.ErrUnavailable, err)
	}
	msgs, err := lunarysjson.UnmarshalMessages(data)
	if err != nil {
		return nil, fmt.Errorf("http: list messages: %w: %w", lunarys.ErrUnavailable, err)
	}
	return msgs, nil
}

// DeleteConversation deletes conversation id. A 404 is reported as
// [lunarys.DeleteNotFound] with a nil error.
func (c *Client) DeleteConversation(ctx context.Context, id int64) (lunarys.DeleteResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	httpReq, log, err := c.newRequest(ctx, http.MethodDelete, conversationPath(id), nil)
	if err != nil {
		return lunarys.DeleteRemoved, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return lunarys.DeleteRemoved, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		log.WithField("conversation_id", id).Info("conversation already gone")
		return lunarys.DeleteNotFound, nil
	case success(resp.StatusCode):
		_, _ = io.Copy(io.Discard, resp.Body)
		return lunarys.DeleteRemoved, nil
	default:
		return lunarys.DeleteRemoved, parseHTTPError(resp)
	}
}

func (c *Client) encode(req lunarys.Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	body, err := lunarysjson.MarshalChatRequest(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return body, nil
}

// do performs a request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	httpReq, log, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		err := parseHTTPError(resp)
		log.WithError(err).Warn("request failed")
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}
	return data, nil
}

// newRequest builds a request tagged with a fresh request id and returns a
// logger carrying it.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, logrus.FieldLogger, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, nil, fmt.Errorf("http: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	log := c.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       path,
	})
	return httpReq, log, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func success(status int) bool {
	return status >= 200 && status < 300
}

func conversationPath(id int64) string {
	return conversationsPath + "/" + strconv.FormatInt(id, 10)
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("http: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	return fmt.Errorf("http: %w", &lunarys.StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	})
}
