package api

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

func TestDo_SendsJSONAndReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/things/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "x", body["name"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)
	data, err := c.Do(context.Background(), http.MethodPost, "/things/", map[string]string{"name": "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(data))
}

func TestDo_NoPayloadOmitsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)
	_, err := c.Do(context.Background(), http.MethodDelete, "/things/1/", nil)
	assert.NoError(t, err)
}

func TestDo_NonSuccessIsStatusError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantMsg    string
	}{
		{
			name:       "detail surfaced verbatim",
			status:     http.StatusBadRequest,
			body:       `{"detail":"Not enough stock for this size."}`,
			wantDetail: "Not enough stock for this size.",
			wantMsg:    "Not enough stock for this size.",
		},
		{
			name:    "no detail falls back to status",
			status:  http.StatusBadGateway,
			body:    `<html>upstream died</html>`,
			wantMsg: "server error: status 502",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.Client(), srv.URL)
			_, err := c.Do(context.Background(), http.MethodGet, "/x/", nil)

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.Status)
			assert.Equal(t, tt.wantDetail, statusErr.Detail)
			assert.Equal(t, tt.wantMsg, statusErr.Error())
		})
	}
}
