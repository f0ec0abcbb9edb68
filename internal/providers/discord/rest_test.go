package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDirectMessage(t *testing.T) {
	var posted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bot token-1", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/users/@me/channels":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "123", body["recipient_id"])
			_, _ = w.Write([]byte(`{"id":"dm-9"}`))
		case "/channels/dm-9/messages":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			posted = body["content"]
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewREST(Config{BotToken: "token-1", APIBase: srv.URL})
	require.NoError(t, p.SendDirectMessage(context.Background(), "123", "payout item clawed back"))
	require.Equal(t, "payout item clawed back", posted)
}

func TestSendDirectMessageSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Cannot send messages to this user"}`))
	}))
	defer srv.Close()

	p := NewREST(Config{BotToken: "token-1", APIBase: srv.URL})
	err := p.SendDirectMessage(context.Background(), "123", "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}
