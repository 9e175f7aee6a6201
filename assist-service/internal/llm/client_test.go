package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteSendsRequest(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  see you soon \n"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/v1/", APIKey: "secret"})
	reply, err := c.Complete(context.Background(), Request{
		Model:       "m",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens:   15,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "see you soon", reply)
	assert.Equal(t, "m", got.Model)
	assert.Equal(t, 15, got.MaxTokens)
	assert.Equal(t, 0.7, got.Temperature)
	require.Len(t, got.Messages, 1)
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	reply, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestCompleteAPIError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"with message", `{"error":{"message":"rate limited"}}`, "rate limited"},
		{"without body", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}).Complete(context.Background(), Request{})
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestCompleteWithoutKey(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://unused"}).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
