package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orchestra-mcp/presence/src/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/control", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["key"] != "s3cret" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found"}`))
			return
		}
		assert.Equal(t, "freeze", body["action"])
		assert.Equal(t, "evt-1", body["eventId"])
		_, _ = w.Write([]byte(`{"scope":"evt-1","frozen":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	res, err := c.Control("s3cret", service.ControlFreeze, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, service.ControlResult{Scope: "evt-1", Frozen: true}, res)

	_, err = c.Control("wrong", service.ControlFreeze, "evt-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/snapshot", r.URL.Path)
		assert.Equal(t, "evt-1", r.URL.Query().Get("eventId"))
		assert.Equal(t, "42", r.URL.Query().Get("challengeId"))
		_, _ = w.Write([]byte(`{"online":3,"frozen":false,"solvers":[{"broadcastId":"s-1","type":"flagSubmitted","roomId":"challenge_42"}],"lastUpdated":1}`))
	}))
	defer srv.Close()

	snap, err := New(srv.URL, time.Second).Snapshot("evt-1", "42")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Online)
	require.Len(t, snap.Solvers, 1)
	assert.Equal(t, "s-1", snap.Solvers[0].BroadcastID)
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Snapshot("", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
