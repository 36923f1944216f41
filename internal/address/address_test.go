package address

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/models"
)

const candidatesJSON = `[
	{"label":"Main Street 1, Springfield","address":"Main Street 1",
	 "city":"Springfield","state":"IL","postal_code":"62701","country":"US"}
]`

func TestSuggest_ReturnsCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/suggest", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(candidatesJSON))
	}))
	defer srv.Close()

	c := New(nil, srv.URL, zap.NewNop())
	got, err := c.Suggest(context.Background(), "main")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Springfield", got[0].City)
	assert.Equal(t, "62701", got[0].PostalCode)
}

func TestSuggest_EmptyQuerySkipsLookup(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := New(nil, srv.URL, zap.NewNop())
	got, err := c.Suggest(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, hits.Load())
}

func TestSuggest_NewerQueryCancelsOlder(t *testing.T) {
	oldArrived := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "old" {
			close(oldArrived)
			// Hold until the client gives up on this lookup.
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(candidatesJSON))
	}))
	defer srv.Close()

	c := New(nil, srv.URL, zap.NewNop())

	oldDone := make(chan struct{})
	var oldRes []models.AddressCandidate
	var oldErr error
	go func() {
		defer close(oldDone)
		oldRes, oldErr = c.Suggest(context.Background(), "old")
	}()

	<-oldArrived
	got, err := c.Suggest(context.Background(), "new")
	require.NoError(t, err)
	require.Len(t, got, 1)

	<-oldDone
	assert.NoError(t, oldErr, "a superseded lookup is silent")
	assert.Nil(t, oldRes, "a superseded lookup yields no candidates")
}

func TestSuggest_ServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(nil, srv.URL, zap.NewNop())
	got, err := c.Suggest(context.Background(), "main")
	require.Error(t, err)
	assert.Nil(t, got)
}

func TestSuggest_BreakerStopsHammeringDeadService(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(nil, srv.URL, zap.NewNop())
	for i := 0; i < 10; i++ {
		_, err := c.Suggest(context.Background(), "main")
		require.Error(t, err)
	}
	assert.Less(t, int(hits.Load()), 10, "the open breaker short-circuits lookups")
}
