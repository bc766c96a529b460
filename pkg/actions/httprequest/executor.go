// Package httprequest implements the http_request action.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/dukex/chatflow/pkg/template"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrMissingFetcher is returned when no HTTP fetch collaborator is configured.
	ErrMissingFetcher = errors.New("http_request requires an HTTP fetcher")
	// ErrMissingURL is returned when the url renders empty.
	ErrMissingURL = errors.New("http_request url is empty")
)

// Executor performs http_request actions. Failures never stop the flow: the
// response variable is set to "" and the walk continues.
type Executor struct {
	fetcher protocol.HTTPFetcher
	timeout time.Duration
}

func NewExecutor(fetcher protocol.HTTPFetcher, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Executor{fetcher: fetcher, timeout: timeout}
}

func (e *Executor) Execute(ctx context.Context, config models.ActionConfig, execCtx *protocol.ExecutionContext) (*protocol.Result, error) {
	cfg, ok := config.(*models.HTTPRequestConfig)
	if !ok {
		return nil, protocol.UnexpectedConfig(models.ActionTypeHTTPRequest, config)
	}

	logger := execCtx.Logger.With("module", "http_request_action")

	req := e.buildRequest(cfg, execCtx)

	value, err := e.fetch(ctx, req)
	if err != nil {
		callErr := protocol.NewExternalCallError(protocol.CallKindHTTP, execCtx, err)
		logger.WarnContext(ctx, "HTTP request failed, continuing with empty result",
			"method", req.Method,
			"url", req.URL,
			"error", callErr)

		value = ""
	} else {
		logger.InfoContext(ctx, "HTTP request completed", "method", req.Method, "url", req.URL)
	}

	result := &protocol.Result{}
	if cfg.ResponseVariable != "" {
		result.VariableWrites = map[string]any{cfg.ResponseVariable: value}
	}

	return result, nil
}

func (e *Executor) buildRequest(cfg *models.HTTPRequestConfig, execCtx *protocol.ExecutionContext) *protocol.HTTPRequest {
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}

	timeout := e.timeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &protocol.HTTPRequest{
		Method:  method,
		URL:     strings.TrimSpace(execCtx.Render(cfg.URL)),
		Headers: template.RenderMap(cfg.Headers, execCtx.Variables),
		Body:    template.RenderValue(cfg.Body, execCtx.Variables),
		Timeout: timeout,
	}
}

func (e *Executor) fetch(ctx context.Context, req *protocol.HTTPRequest) (any, error) {
	if req.URL == "" {
		return nil, ErrMissingURL
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		return nil, &protocol.StatusError{Status: resp.Status, Body: string(resp.Body)}
	}

	return parseBody(resp.Body), nil
}

// parseBody decodes JSON bodies and falls back to the raw text.
func parseBody(body []byte) any {
	if len(body) == 0 {
		return ""
	}

	var value any

	err := json.Unmarshal(body, &value)
	if err != nil {
		return string(body)
	}

	return value
}
