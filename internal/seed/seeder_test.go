package seed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txdash/internal/core"
	"txdash/internal/notify"
	"txdash/internal/storage"
	"txdash/internal/storage/memory"
)

const feedJSON = `[
  {"id":1,"title":"ignored","productTitle":"Blue Shirt","productDescription":"cotton","price":50,"category":"A","sold":true,"dateOfSale":"2022-03-05T10:00:00+05:30","image":"x.png"},
  {"id":2,"productTitle":"Laptop","productDescription":"fast","price":550,"category":"B","sold":false,"dateOfSale":"2022-03-09T00:00:00Z"},
  {"id":3,"productTitle":"Red Hat","productDescription":"wool","price":120,"category":"A","sold":true,"dateOfSale":"2022-04-02"}
]`

type recorder struct {
	mu     sync.Mutex
	states []core.DatasetState
}

func (r *recorder) Notify(_ context.Context, s core.DatasetStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.State)
	return nil
}

func zeroBackoff() backoff.BackOff { return &backoff.ZeroBackOff{} }

func feedServer(t *testing.T, failures int32, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestDecode(t *testing.T) {
	txs, err := Decode(strings.NewReader(feedJSON))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, int64(1), txs[0].ID)
	assert.Equal(t, "Blue Shirt", txs[0].ProductTitle)
	assert.Equal(t, 50.0, txs[0].Price)
	assert.True(t, txs[0].Sold)
	// 10:00 at +05:30 is 04:30 UTC on the same day
	assert.Equal(t, 4, txs[0].DateOfSale.Hour())
	assert.Equal(t, 4, txs[2].DateOfSale.Month())
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not json", `<html>`, ErrMalformedFeed},
		{"object instead of array", `{"id":1}`, ErrMalformedFeed},
		{"missing sold", `[{"id":1,"productTitle":"a","productDescription":"b","price":1,"category":"c","dateOfSale":"2022-01-01"}]`, core.ErrInvalidRecord},
		{"missing price", `[{"id":1,"productTitle":"a","productDescription":"b","sold":true,"category":"c","dateOfSale":"2022-01-01"}]`, core.ErrInvalidRecord},
		{"empty category", `[{"id":1,"productTitle":"a","productDescription":"b","price":1,"sold":true,"category":"","dateOfSale":"2022-01-01"}]`, core.ErrInvalidRecord},
		{"bad date", `[{"id":1,"productTitle":"a","productDescription":"b","price":1,"sold":true,"category":"c","dateOfSale":"yesterday"}]`, ErrMalformedFeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrMalformedFeed)
		})
	}
}

func TestSeeder_Run(t *testing.T) {
	srv, _ := feedServer(t, 0, feedJSON)
	store := memory.New()
	rec := &recorder{}

	s := New(store, HTTPSource{URL: srv.URL}, Options{Notifier: rec})
	assert.Equal(t, core.StatePending, s.Status().State)
	assert.False(t, s.Ready())

	require.NoError(t, s.Run(context.Background()))

	assert.True(t, s.Ready())
	assert.Equal(t, 3, s.Status().Records)
	assert.Equal(t, srv.URL, s.Status().Source)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, []core.DatasetState{core.StateSeeding, core.StateReady}, rec.states)
}

func TestSeeder_NoRetryByDefault(t *testing.T) {
	srv, calls := feedServer(t, 1, feedJSON)
	store := memory.New()

	s := New(store, HTTPSource{URL: srv.URL}, Options{Backoff: zeroBackoff})
	err := s.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, core.StateFailed, s.Status().State)
	assert.Equal(t, 0, store.Len())
}

func TestSeeder_RetriesTransientFailures(t *testing.T) {
	srv, calls := feedServer(t, 2, feedJSON)
	store := memory.New()

	s := New(store, HTTPSource{URL: srv.URL}, Options{MaxRetries: 3, Backoff: zeroBackoff})
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, s.Status().Attempt)
	assert.Equal(t, 3, store.Len())
}

func TestSeeder_MalformedFeedIsNotRetried(t *testing.T) {
	srv, calls := feedServer(t, 0, `{"oops":true}`)

	s := New(memory.New(), HTTPSource{URL: srv.URL}, Options{MaxRetries: 3, Backoff: zeroBackoff})
	err := s.Run(context.Background())

	assert.ErrorIs(t, err, ErrMalformedFeed)
	assert.Equal(t, int32(1), calls.Load())
}

type failingStore struct {
	storage.Store
}

func (failingStore) Load(context.Context, []core.Transaction) error {
	return errors.New("disk full")
}

func TestSeeder_LoadFailure(t *testing.T) {
	srv, _ := feedServer(t, 0, feedJSON)
	rec := &recorder{}

	s := New(failingStore{Store: memory.New()}, HTTPSource{URL: srv.URL}, Options{Notifier: notify.Multi{rec}})
	err := s.Run(context.Background())

	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, core.StateFailed, s.Status().State)
	assert.Contains(t, s.Status().Error, "disk full")
	assert.Equal(t, []core.DatasetState{core.StateSeeding, core.StateFailed}, rec.states)
}

func TestSeeder_FileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(feedJSON), 0o644))
	store := memory.New()

	s := New(store, FileSource{Path: path}, Options{})
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 3, store.Len())
	assert.Equal(t, "file://"+path, s.Status().Source)
}

func TestSeeder_ReseedIsIdempotent(t *testing.T) {
	srv, _ := feedServer(t, 0, feedJSON)
	store := memory.New()
	s := New(store, HTTPSource{URL: srv.URL}, Options{})

	require.NoError(t, s.Run(context.Background()))
	first, err := store.FindPage(context.Background(), core.Filter{}, core.Page{})
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))
	second, err := store.FindPage(context.Background(), core.Filter{}, core.Page{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNewSource(t *testing.T) {
	assert.Equal(t, FileSource{Path: "feed.json"}, NewSource("feed.json", "http://feed.test"))
	assert.Equal(t, HTTPSource{URL: "http://feed.test"}, NewSource("", "http://feed.test"))
	assert.Equal(t, "file://feed.json", NewSource("feed.json", "").String())
}

func TestSeeder_FailureClearsEarlierData(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Load(context.Background(), []core.Transaction{
		{ID: 99, ProductTitle: "stale", Category: "old", DateOfSale: core.NewDate(2021, 1, 1)},
	}))
	srv, _ := feedServer(t, 10, feedJSON)

	s := New(store, HTTPSource{URL: srv.URL}, Options{Backoff: zeroBackoff})
	require.Error(t, s.Run(context.Background()))

	assert.Equal(t, core.StateFailed, s.Status().State)
	assert.Equal(t, 0, store.Len())
}
