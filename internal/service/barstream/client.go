// Package barstream reads bar-close and tick events from a market data gateway over WebSocket.
package barstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"MarketScreener/internal/domain/models"
	drepo "MarketScreener/internal/domain/repository"
	applogger "MarketScreener/pkg/logger"
	"MarketScreener/pkg/util"

	"github.com/gorilla/websocket"
)

// Config configures the gateway connection.
type Config struct {
	URL            string
	Token          string
	Symbols        []string
	TimeFrames     []models.TimeFrame
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// Client implements BarStream.
type Client struct {
	cfg    Config
	logger *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func New(cfg Config, l *applogger.Logger) drepo.BarStream {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{cfg: cfg, logger: l}
}

func (c *Client) Connect(ctx context.Context) error {
	u := c.cfg.URL
	if c.cfg.Token != "" {
		u = fmt.Sprintf("%s?token=%s", u, c.cfg.Token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("barstream connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.logger.Info("Bar stream connected", applogger.String("url", c.cfg.URL))
	return nil
}

type subscribeMsg struct {
	Type       string   `json:"type"`
	Symbols    []string `json:"symbols"`
	TimeFrames []string `json:"timeframes"`
}

func (c *Client) Subscribe(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("barstream not connected")
	}

	tfs := make([]string, len(c.cfg.TimeFrames))
	for i, tf := range c.cfg.TimeFrames {
		tfs[i] = string(tf)
	}
	msg := subscribeMsg{Type: "subscribe", Symbols: c.cfg.Symbols, TimeFrames: tfs}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.logger.Info("Bar stream subscribed",
		applogger.Strings("symbols", c.cfg.Symbols),
		applogger.Strings("timeframes", tfs))
	return nil
}

// wireEvent is one gateway frame. T is unix seconds or milliseconds.
type wireEvent struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol"`
	TF     string  `json:"tf"`
	Price  float64 `json:"p"`
	T      int64   `json:"t"`
}

// Read streams events until the connection fails or ctx ends.
// Events are dropped when the consumer falls behind.
func (c *Client) Read(ctx context.Context) (<-chan *models.BarEvent, <-chan *models.TickEvent, <-chan error) {
	bars := make(chan *models.BarEvent, 256)
	ticks := make(chan *models.TickEvent, 1024)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	go c.pingLoop(readCtx, conn)

	go func() {
		defer cancel()
		defer close(bars)
		defer close(ticks)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("barstream conn nil")
			return
		}
		for {
			if readCtx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("barstream read: %w", err)
				return
			}
			var batch []wireEvent
			if err := json.Unmarshal(b, &batch); err != nil {
				var single wireEvent
				if json.Unmarshal(b, &single) != nil {
					continue
				}
				batch = []wireEvent{single}
			}
			for _, ev := range batch {
				c.dispatch(ev, bars, ticks)
			}
		}
	}()

	return bars, ticks, errs
}

func (c *Client) dispatch(ev wireEvent, bars chan<- *models.BarEvent, ticks chan<- *models.TickEvent) {
	switch ev.Type {
	case "bar":
		select {
		case bars <- &models.BarEvent{Symbol: ev.Symbol, TimeFrame: models.TimeFrame(ev.TF), Time: util.UnixAuto(ev.T)}:
		default:
		}
	case "tick":
		select {
		case ticks <- &models.TickEvent{Symbol: ev.Symbol, Price: ev.Price, Time: util.UnixAuto(ev.T)}:
		default:
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if conn == nil {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.cfg.ReconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
