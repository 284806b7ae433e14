package stream

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/pkg/logger"
)

type ClientConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Serve pumps sub onto conn until the peer goes away, the subscription is
// dropped, or ctx ends. It owns conn and closes it on return.
func Serve(ctx context.Context, conn *websocket.Conn, sub *Subscription, cfg ClientConfig) {
	cfg = cfg.withDefaults()
	defer conn.Close()
	defer sub.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pongs := make(chan struct{}, 1)
	go readLoop(ctx, cancel, conn, pongs, cfg.PingInterval*2)

	hello, _ := json.Marshal(model.LiveMessage{
		Type:     "connected",
		EntityID: sub.EntityID,
		Message:  "Connected to real-time logs",
	})
	if err := write(conn, websocket.TextMessage, hello, cfg.WriteTimeout); err != nil {
		return
	}

	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = write(conn, websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), cfg.WriteTimeout)
			return
		case msg, ok := <-sub.C:
			if !ok {
				_ = write(conn, websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subscription closed"), cfg.WriteTimeout)
				return
			}
			if err := write(conn, websocket.TextMessage, msg, cfg.WriteTimeout); err != nil {
				logger.Debug("live write failed", "entity_id", sub.EntityID, "error", err)
				return
			}
		case <-pongs:
			if err := write(conn, websocket.TextMessage, []byte(`{"type":"pong"}`), cfg.WriteTimeout); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(conn, websocket.PingMessage, nil, cfg.WriteTimeout); err != nil {
				return
			}
		}
	}
}

// readLoop keeps the read side drained so control frames are processed, and
// answers the text keep-alive "ping".
func readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, pongs chan<- struct{}, idle time.Duration) {
	defer cancel()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(idle))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(idle))
		if typ == websocket.TextMessage && strings.TrimSpace(string(data)) == "ping" {
			select {
			case pongs <- struct{}{}:
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

func write(conn *websocket.Conn, typ int, data []byte, timeout time.Duration) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	return conn.WriteMessage(typ, data)
}
