package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableForwardsAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, availablePath, r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"jobs":[{"_id":"1","title":"Plumber","location":"Nairobi"},{"title":"Painter"}]}`))
	}))
	defer srv.Close()

	jobs, err := NewClient(Config{BaseURL: srv.URL + "/"}).Available(context.Background(), "Bearer user-token")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Plumber", jobs[0].Title)
	assert.Equal(t, "Nairobi", jobs[0].Location)
	assert.Empty(t, jobs[1].Location)
}

func TestAvailableErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"no token"}`},
		{"bad json", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(Config{BaseURL: srv.URL}).Available(context.Background(), "")
			assert.Error(t, err)
		})
	}
}
