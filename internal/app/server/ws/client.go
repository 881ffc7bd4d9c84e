package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// RuntimeConn is the registry-facing handle around one WebSocket. Writes go
// through a buffered channel and a single writer goroutine, so routing
// goroutines never block on the socket.
type RuntimeConn struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	id     uuid.UUID
	out    chan []byte
	once   sync.Once
}

func NewRuntimeConn(parent context.Context, ws *WebSocket) *RuntimeConn {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeConn{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		id:     uuid.New(),
		out:    make(chan []byte, 256),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeConn) ID() uuid.UUID { return c.id }

func (c *RuntimeConn) Send(ctx context.Context, text string) error {
	if c.ctx.Err() != nil {
		return errors.New("connection closed")
	}
	select {
	case c.out <- []byte(text):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return errors.New("connection closed")
	}
}

func (c *RuntimeConn) Close() {
	c.once.Do(func() {
		// out is never closed; writeLoop and Send both exit through ctx so a
		// late Send cannot panic on a closed channel.
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeConn) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data, ok := <-c.out:
			if !ok {
				return
			}
			_ = c.ws.WriteText(data)
		}
	}
}
