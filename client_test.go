package goqsw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/live", r.URL.Path)
		cookie, err := r.Cookie(cookieLanguage)
		require.NoError(t, err)
		assert.Equal(t, defaultLanguage, cookie.Value)
		w.Write([]byte(`{"error_code": 200, "error_message": "OK", "result": "None"}`))
	}))
	defer server.Close()

	api := NewClient(server.Client(), ConnectionOptions{URL: server.URL})
	resp, err := api.GetLive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.ErrorCode)
	assert.Equal(t, "OK", resp.ErrorMessage)
	assert.True(t, resultIsNone(resp))
}

func TestRequestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrLogin},
		{"internal server error", http.StatusInternalServerError, ErrInternalServer},
		{"other", http.StatusForbidden, ErrAPI},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"error_code": 1, "error_message": "failed"}`))
			}))
			defer server.Close()

			api := NewClient(server.Client(), ConnectionOptions{URL: server.URL})
			_, err := api.GetLive(context.Background())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRequestInternalServerErrorIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	api := NewClient(server.Client(), ConnectionOptions{URL: server.URL})
	_, err := api.GetLive(context.Background())
	assert.ErrorIs(t, err, ErrInternalServer)
	assert.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "qsw: internal server error")
}

func TestRequestInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	api := NewClient(server.Client(), ConnectionOptions{URL: server.URL})
	_, err := api.GetLive(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestRequestStatusWinsOverBadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`<html>login page</html>`))
	}))
	defer server.Close()

	api := NewClient(server.Client(), ConnectionOptions{URL: server.URL})
	_, err := api.GetLive(context.Background())
	assert.ErrorIs(t, err, ErrLogin)
}

func TestRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	httpClient := server.Client()
	httpClient.Timeout = 50 * time.Millisecond
	api := NewClient(httpClient, ConnectionOptions{URL: server.URL})
	_, err := api.GetLive(context.Background())
	assert.ErrorIs(t, err, ErrAPITimeout)
}

func TestRequestUnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	api := NewClient(nil, ConnectionOptions{URL: url})
	_, err := api.GetLive(context.Background())
	assert.ErrorIs(t, err, ErrInvalidHost)
}

func TestAPIErrorMessage(t *testing.T) {
	err := newAPIError(ErrLogin, http.MethodGet, "api/v1/system/board", 401, "denied", nil)
	assert.ErrorIs(t, err, ErrLogin)
	assert.Contains(t, err.Error(), "GET /api/v1/system/board")
	assert.Contains(t, err.Error(), "HTTP=401")
	assert.Contains(t, err.Error(), "Resp=denied")
}
