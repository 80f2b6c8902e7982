package barstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketScreener/internal/domain/models"
	applogger "MarketScreener/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateway(t *testing.T, got chan<- subscribeMsg, frames ...string) *httptest.Server {
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var sub subscribeMsg
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		got <- sub
		for _, f := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		_, _, _ = conn.ReadMessage()
	}))
}

func TestClientReadsBarsAndTicks(t *testing.T) {
	subs := make(chan subscribeMsg, 1)
	srv := gateway(t, subs,
		`{"type":"bar","symbol":"EURUSD","tf":"H1","t":1709294400}`,
		`[{"type":"tick","symbol":"EURUSD","p":1.0841,"t":1709294461000},{"type":"heartbeat"}]`,
		`not json`,
	)
	defer srv.Close()

	c := New(Config{
		URL:        "ws" + strings.TrimPrefix(srv.URL, "http"),
		Symbols:    []string{"EURUSD"},
		TimeFrames: []models.TimeFrame{models.H1, models.H4},
	}, applogger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	require.True(t, c.IsConnected())
	require.NoError(t, c.Subscribe(ctx))

	sub := <-subs
	assert.Equal(t, "subscribe", sub.Type)
	assert.Equal(t, []string{"H1", "H4"}, sub.TimeFrames)

	bars, ticks, _ := c.Read(ctx)

	select {
	case b := <-bars:
		assert.Equal(t, "EURUSD", b.Symbol)
		assert.Equal(t, models.H1, b.TimeFrame)
		assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), b.Time)
	case <-time.After(2 * time.Second):
		t.Fatal("no bar event")
	}

	select {
	case tk := <-ticks:
		assert.InDelta(t, 1.0841, tk.Price, 1e-9)
		assert.Equal(t, time.Date(2024, 3, 1, 12, 1, 1, 0, time.UTC), tk.Time)
	case <-time.After(2 * time.Second):
		t.Fatal("no tick event")
	}

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}

func TestSubscribeRequiresConnection(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1"}, applogger.NewNop())
	assert.Error(t, c.Subscribe(context.Background()))
}
