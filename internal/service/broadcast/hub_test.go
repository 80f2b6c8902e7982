package broadcast

import (
	"context"
	"encoding/json"
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

func snapshot(seq uint64) *models.Snapshot {
	return &models.Snapshot{
		Type:   models.SnapshotMessageType,
		Seq:    seq,
		At:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Assets: []models.AssetSnapshot{{Name: "EURUSD", Timing: models.Timing{models.H1: 1}}},
	}
}

func readSeq(t *testing.T, conn *websocket.Conn) uint64 {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(msg, &snap))
	assert.Equal(t, "update", snap.Type)
	return snap.Seq
}

func TestHubPublishWithoutClients(t *testing.T) {
	h := NewHub(applogger.NewNop())
	assert.Equal(t, "websocket", h.Name())
	assert.NoError(t, h.Publish(context.Background(), snapshot(1)))
	assert.Equal(t, 0, h.ClientCount())
}

func TestHubSendsLatestOnConnect(t *testing.T) {
	h := NewHub(applogger.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	require.NoError(t, h.Publish(context.Background(), snapshot(1)))
	require.NoError(t, h.Publish(context.Background(), snapshot(2)))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, uint64(2), readSeq(t, conn))
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, h.Publish(context.Background(), snapshot(3)))
	assert.Equal(t, uint64(3), readSeq(t, conn))
}

func TestClientOfferKeepsLatest(t *testing.T) {
	c := &Client{send: make(chan []byte, 1)}
	c.offer([]byte("1"))
	c.offer([]byte("2"))
	c.offer([]byte("3"))
	assert.Equal(t, "3", string(<-c.send))
	assert.Len(t, c.send, 0)
}
