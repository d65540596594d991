package serve

import (
	"strings"
	"testing"
	"time"

	"hastycam/feed"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdaterPushesOnSave(t *testing.T) {
	srv, store := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/configws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	msgs := make(chan string, 10)
	go func() {
		for {
			_, b, err := ws.ReadMessage()
			if err != nil {
				close(msgs)
				return
			}
			msgs <- string(b)
		}
	}()

	// The client registers asynchronously after the handshake, so keep
	// writing until an update arrives.
	deadline := time.After(2 * time.Second)
	for {
		require.NoError(t, store.SaveFeed(feed.Feed{ID: "1", Name: "Gate", StreamURL: "u"}))
		select {
		case m := <-msgs:
			assert.Equal(t, "update", m)
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no update received")
		}
	}
}

func TestUpdaterConfigUpdatedNeverBlocks(t *testing.T) {
	u := NewUpdater()
	defer u.Close()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			u.ConfigUpdated("feeds")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ConfigUpdated blocked")
	}
}
