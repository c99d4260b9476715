package cloudsync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roxtor/backend/internal/domain"
)

func snapshotFor(apiURL string, enabled bool) SnapshotFunc {
	return func(context.Context) (domain.Snapshot, error) {
		return domain.Snapshot{
			Orders: []domain.Order{{ID: "o1", OrderNumber: "P-0001"}},
			Stores: []domain.Store{{ID: "store_1", Name: "ROXTOR PRINCIPAL"}},
			Settings: domain.Settings{
				BusinessName:  "ROXTOR",
				EncryptionKey: "ROXTOR-LOCAL",
				LoginPINHash:  "$2a$hash",
				CloudSync:     domain.CloudSyncSettings{Enabled: enabled, APIURL: apiURL, APIKey: "anon-key"},
			},
		}, nil
	}
}

func TestPushSendsUpsertWithoutSecrets(t *testing.T) {
	var got map[string]any
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/roxtor_sync", r.URL.Path)
		headers = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	fixed := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	p := New(snapshotFor(srv.URL+"/", true), Options{StoreID: "store_1", Now: func() time.Time { return fixed }})

	require.NoError(t, p.Push(context.Background()))

	assert.Equal(t, "anon-key", headers.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", headers.Get("Authorization"))
	assert.Equal(t, "resolution=merge-duplicates", headers.Get("Prefer"))
	assert.Equal(t, "store_1", got["store_id"])
	assert.Equal(t, "2026-03-09T15:00:00Z", got["last_sync"])

	payload := got["payload"].(map[string]any)
	settings := payload["settings"].(map[string]any)
	assert.Equal(t, "ROXTOR", settings["business_name"])
	assert.Empty(t, settings["encryption_key"])
	assert.NotContains(t, settings, "login_pin_hash")
	assert.Len(t, settings["stores"], 1)
	assert.Len(t, payload["orders"], 1)

	status, last := p.Status()
	assert.Equal(t, StatusSynced, status)
	require.NotNil(t, last)
	assert.Equal(t, fixed, *last)
}

func TestFailedPushGoesOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := New(snapshotFor(srv.URL, true), Options{})

	assert.Error(t, p.Push(context.Background()))
	status, last := p.Status()
	assert.Equal(t, StatusOffline, status)
	assert.Nil(t, last)
}

func TestDisabledSyncDoesNothing(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	p := New(snapshotFor(srv.URL, false), Options{})

	require.NoError(t, p.Push(context.Background()))
	assert.Zero(t, atomic.LoadInt32(&calls))
	status, _ := p.Status()
	assert.Equal(t, StatusOffline, status)
}

func TestNotifyDebouncesBursts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	p := New(snapshotFor(srv.URL, true), Options{Debounce: 30 * time.Millisecond})
	for i := 0; i < 10; i++ {
		p.Notify()
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFlushPushesPendingChange(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	p := New(snapshotFor(srv.URL, true), Options{Debounce: time.Hour})
	require.NoError(t, p.Flush(context.Background()))
	assert.Zero(t, atomic.LoadInt32(&calls), "nothing pending")

	p.Notify()
	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
