package httprequest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukex/chatflow/pkg/actions/httprequest"
	"github.com/dukex/chatflow/pkg/mocks"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/dukex/chatflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestExecutor_StoresParsedResponse(t *testing.T) {
	t.Parallel()

	fetcher := &mocks.MockHTTPFetcher{}
	fetcher.On("Fetch", mock.Anything, mock.MatchedBy(func(req *protocol.HTTPRequest) bool {
		body, _ := req.Body.(map[string]any)

		return req.Method == "POST" &&
			req.URL == "https://api.example.com/orders/A1" &&
			req.Headers["Authorization"] == "Bearer tok" &&
			body["customer"] == "Ana" &&
			req.Timeout == 10*time.Second
	})).Return(&protocol.HTTPResponse{Status: 201, Body: []byte(`{"status":"shipped"}`)}, nil)

	executor := httprequest.NewExecutor(fetcher, 10*time.Second)
	result, err := executor.Execute(context.Background(), &models.HTTPRequestConfig{
		Method:           "post",
		URL:              "https://api.example.com/orders/{{order}}",
		Headers:          map[string]string{"Authorization": "Bearer {{token}}"},
		Body:             map[string]any{"customer": "{{name}}"},
		ResponseVariable: "order_status",
	}, testutil.ExecutionContext(map[string]any{"order": "A1", "token": "tok", "name": "Ana"}, ""))

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"order_status": map[string]any{"status": "shipped"}}, result.VariableWrites)
	fetcher.AssertExpectations(t)
}

func TestExecutor_FailuresContinueWithEmptyResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response *protocol.HTTPResponse
		err      error
	}{
		{name: "non-2xx", response: &protocol.HTTPResponse{Status: 503, Body: []byte("down")}},
		{name: "timeout", err: context.DeadlineExceeded},
		{name: "transport error", err: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fetcher := &mocks.MockHTTPFetcher{}
			if tt.response != nil {
				fetcher.On("Fetch", mock.Anything, mock.Anything).Return(tt.response, nil)
			} else {
				fetcher.On("Fetch", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			result, err := httprequest.NewExecutor(fetcher, time.Second).Execute(context.Background(),
				&models.HTTPRequestConfig{URL: "https://api.example.com", ResponseVariable: "data"},
				testutil.ExecutionContext(nil, ""))

			require.NoError(t, err)
			assert.Equal(t, map[string]any{"data": ""}, result.VariableWrites)
		})
	}
}

func TestExecutor_DefaultsAndPlainTextBody(t *testing.T) {
	t.Parallel()

	fetcher := &mocks.MockHTTPFetcher{}
	fetcher.On("Fetch", mock.Anything, mock.MatchedBy(func(req *protocol.HTTPRequest) bool {
		return req.Method == "GET" && req.Timeout == 3*time.Second
	})).Return(&protocol.HTTPResponse{Status: 200, Body: []byte("pong")}, nil)

	result, err := httprequest.NewExecutor(fetcher, 0).Execute(context.Background(),
		&models.HTTPRequestConfig{URL: "https://api.example.com/ping", ResponseVariable: "pong", TimeoutSeconds: 3},
		testutil.ExecutionContext(nil, ""))

	require.NoError(t, err)
	assert.Equal(t, "pong", result.VariableWrites["pong"])
}

func TestExecutor_EmptyURLIsAFailureNotAnError(t *testing.T) {
	t.Parallel()

	fetcher := &mocks.MockHTTPFetcher{}

	result, err := httprequest.NewExecutor(fetcher, time.Second).Execute(context.Background(),
		&models.HTTPRequestConfig{URL: "{{base_url}}"}, testutil.ExecutionContext(nil, ""))

	require.NoError(t, err)
	assert.Empty(t, result.VariableWrites)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestExecutorFactory_RequiresFetcher(t *testing.T) {
	t.Parallel()

	_, err := httprequest.NewExecutorFactory().Create(protocol.Dependencies{})
	require.ErrorIs(t, err, httprequest.ErrMissingFetcher)

	executor, err := httprequest.NewExecutorFactory().Create(protocol.Dependencies{HTTP: &mocks.MockHTTPFetcher{}})
	require.NoError(t, err)
	assert.NotNil(t, executor)
}
