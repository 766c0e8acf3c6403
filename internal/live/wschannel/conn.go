// Package wschannel implements live.Channel with JSON frames over a websocket.
//
// Every frame is {"event": ..., "data": ..., "id": ...}. A frame sent with a
// non-zero id expects the peer to answer {"event": "ack", "id": <same>, "data": ...}.
package wschannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/live"
)

// EventAck is the reserved event name of acknowledgment frames.
const EventAck = "ack"

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("wschannel: closed")

// Frame is the wire format.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	ID    uint64          `json:"id,omitempty"`
}

// TokenSource supplies the bearer token sent in the handshake.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Dialer opens connections under URL; the namespace is appended to its path.
type Dialer struct {
	URL          string
	Tokens       TokenSource
	WriteTimeout time.Duration
	Log          *zap.Logger
}

// Dial implements live.Dialer.
func (d Dialer) Dial(ctx context.Context, namespace string) (live.Channel, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("wschannel: url: %w", err)
	}
	u = u.JoinPath(namespace)
	hdr := http.Header{}
	if d.Tokens != nil {
		if tok, ok := d.Tokens.Token(ctx); ok {
			hdr.Set("Authorization", "Bearer "+tok)
		}
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), hdr)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("wschannel: dial %s: %w", u.Redacted(), err)
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return newConn(ws, d.WriteTimeout, log), nil
}

// Conn is one websocket connection.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	log          *zap.Logger

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan json.RawMessage

	events    chan live.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration, log *zap.Logger) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	c := &Conn{
		ws:           ws,
		writeTimeout: writeTimeout,
		log:          log,
		pending:      make(map[uint64]chan json.RawMessage),
		events:       make(chan live.Event, 64),
		done:         make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Conn) Events() <-chan live.Event { return c.events }
func (c *Conn) Done() <-chan struct{}     { return c.done }

// Close shuts the socket; pending acks fail with ErrClosed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
		close(c.done)
	})
	return err
}

// Emit sends event without waiting for a reply.
func (c *Conn) Emit(ctx context.Context, event string, data any) error {
	return c.write(ctx, event, data, 0)
}

// EmitWithAck sends event and waits for the matching ack.
func (c *Conn) EmitWithAck(ctx context.Context, event string, data any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	wait := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.pending[id] = wait
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(ctx, event, data, id); err != nil {
		return nil, err
	}
	select {
	case ack := <-wait:
		return ack, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Conn) write(ctx context.Context, event string, data any, id uint64) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("wschannel: encode %s: %w", event, err)
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteJSON(Frame{Event: event, Data: raw, ID: id}); err != nil {
		return fmt.Errorf("wschannel: write %s: %w", event, err)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer func() { _ = c.Close() }()
	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.log.Debug("read", zap.Error(err))
			}
			return
		}
		if f.Event == EventAck {
			c.mu.Lock()
			wait, ok := c.pending[f.ID]
			c.mu.Unlock()
			if ok {
				select {
				case wait <- f.Data:
				default:
				}
			}
			continue
		}
		select {
		case c.events <- live.Event{Name: f.Event, Data: f.Data}:
		case <-c.done:
			return
		}
	}
}
