package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanPublisher struct {
	out chan []AggregatedLogEntry
}

func (p *chanPublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.out <- payload.([]AggregatedLogEntry)
	return nil
}

func TestCollector_FoldsRepeatsAndFlushesOnRemove(t *testing.T) {
	pub := &chanPublisher{out: make(chan []AggregatedLogEntry, 1)}
	l := NewNop()
	l.AddCollector(&CollectionConfig{
		Service:        "screener",
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "logs",
		Publisher:      pub,
	})

	for i := 0; i < 3; i++ {
		l.Error("feed read failed", String("symbol", "EURUSD"), Error(errors.New("timeout")))
	}
	l.Error("feed read failed", String("symbol", "GBPUSD"))
	l.Warn("ignored without IncludeWarnings")
	l.RemoveCollector()

	select {
	case logs := <-pub.out:
		require.Len(t, logs, 2)
		assert.Equal(t, 3, logs[0].Count)
		assert.Equal(t, "EURUSD", logs[0].Fields["symbol"])
		assert.Equal(t, "timeout", logs[0].Fields["error"])
		assert.Equal(t, "screener", logs[0].Service)
		assert.Equal(t, 1, logs[1].Count)
	case <-time.After(time.Second):
		t.Fatal("collector did not flush")
	}
}

func TestCollector_FlushesAtThreshold(t *testing.T) {
	pub := &chanPublisher{out: make(chan []AggregatedLogEntry, 2)}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")

	select {
	case logs := <-pub.out:
		assert.Len(t, logs, 2)
	case <-time.After(time.Second):
		t.Fatal("threshold flush missing")
	}
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)

	l, err := New(&Config{Level: "info", Output: "stderr"})
	require.NoError(t, err)
	assert.NotPanics(t, func() { l.Named("engine").Info("ok", Duration("took", time.Second)) })
}
