package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
	"github.com/nocturn-hq/concierge-widget/internal/transport"
)

func TestHTTPFallbackConverse(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/conversations", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"Check-in is at 3pm.","conversation_id":"c-1","mode":"ai","lead_created":false}`))
	}))
	defer srv.Close()

	fb, err := transport.NewHTTPFallback(srv.URL, time.Second)
	require.NoError(t, err)

	reply, err := fb.Converse(context.Background(), chat.OutboundMessage{
		Message:    "When is check-in?",
		SessionID:  "sess-1",
		PropertyID: "prop-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Check-in is at 3pm.", reply.Response)
	assert.Equal(t, "c-1", reply.ConversationID)
	assert.Equal(t, map[string]string{
		"property_id": "prop-1",
		"message":     "When is check-in?",
		"session_id":  "sess-1",
	}, got)
}

func TestHTTPFallbackErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Property not found"}`))
	}))
	defer srv.Close()

	fb, err := transport.NewHTTPFallback(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = fb.Converse(context.Background(), chat.OutboundMessage{Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Property not found")
}

func TestHTTPFallbackMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	fb, err := transport.NewHTTPFallback(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = fb.Converse(context.Background(), chat.OutboundMessage{Message: "hi"})
	require.Error(t, err)
}

func TestHTTPFallbackUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	fb, err := transport.NewHTTPFallback(base, time.Second)
	require.NoError(t, err)

	_, err = fb.Converse(context.Background(), chat.OutboundMessage{Message: "hi"})
	require.Error(t, err)
}
