package httpfetch_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/chatflow/pkg/clients/httpfetch"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"method": r.Method,
			"token":  r.Header.Get("Authorization"),
			"body":   string(body),
		})
	}))
	defer server.Close()

	client := httpfetch.NewClient(slog.New(slog.DiscardHandler), time.Second)

	resp, err := client.Fetch(context.Background(), &protocol.HTTPRequest{
		Method:  "post",
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer abc"},
		Body:    map[string]any{"order": "42"},
	})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	var echoed map[string]string
	require.NoError(t, json.Unmarshal(resp.Body, &echoed))
	assert.Equal(t, "POST", echoed["method"])
	assert.Equal(t, "Bearer abc", echoed["token"])
	assert.JSONEq(t, `{"order":"42"}`, echoed["body"])
}

func TestClient_FetchReturnsErrorStatuses(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	resp, err := httpfetch.NewClient(slog.New(slog.DiscardHandler), time.Second).
		Fetch(context.Background(), &protocol.HTTPRequest{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.False(t, resp.IsSuccess())
}

func TestClient_FetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := httpfetch.NewClient(slog.New(slog.DiscardHandler), time.Minute).
		Fetch(context.Background(), &protocol.HTTPRequest{URL: server.URL, Timeout: 50 * time.Millisecond})
	require.Error(t, err)
}
