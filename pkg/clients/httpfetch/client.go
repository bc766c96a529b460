// Package httpfetch is the generic HTTP fetch collaborator used by the
// http_request action.
package httpfetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = 10 * time.Second

type Client struct {
	client  *resty.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewClient(logger *slog.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		client:  resty.New().SetHeader("User-Agent", "chatflow"),
		timeout: timeout,
		logger:  logger.With("module", "http_fetch"),
	}
}

// Fetch performs the request. Any status is returned as a response; only
// transport failures and timeouts are errors.
func (c *Client) Fetch(ctx context.Context, req *protocol.HTTPRequest) (*protocol.HTTPResponse, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	request := c.client.R().
		SetContext(ctx).
		SetHeaders(req.Headers)

	if req.Body != nil {
		request.SetBody(req.Body)
	}

	start := time.Now()

	resp, err := request.Execute(method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}

	c.logger.DebugContext(ctx, "HTTP request completed",
		"method", method,
		"url", req.URL,
		"status", resp.StatusCode(),
		"duration", time.Since(start))

	return &protocol.HTTPResponse{
		Status: resp.StatusCode(),
		Body:   resp.Body(),
	}, nil
}
