package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddr(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "127.0.0.1:8080"},
		{"garbage", "127.0.0.1:8080"},
		{"0.0.0.0:9090", "127.0.0.1:9090"},
		{":9090", "127.0.0.1:9090"},
		{"[::]:9090", "[::1]:9090"},
		{"10.0.0.5:8080", "10.0.0.5:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAddr(tt.raw))
		})
	}
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   int
	}{
		{"healthy", http.StatusOK, `{"status":"ok"}`, 0},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, 1},
		{"unexpected body", http.StatusOK, `not json`, 1},
		{"degraded", http.StatusOK, `{"status":"starting"}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			assert.Equal(t, tt.want, checkHealth(srv.URL+"/api/v1/health"))
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		assert.Equal(t, 1, checkHealth("http://127.0.0.1:1/api/v1/health"))
	})
}
