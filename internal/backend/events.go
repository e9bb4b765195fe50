package backend

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// Handler receives decoded events from the feed. Handlers must not
// block; they run on the feed's read loop.
type Handler func(Event)

// Feed subscribes to the engine's websocket event stream and delivers
// tagged events to a single handler. The connection is re-established
// with capped backoff; onReconnect runs after each successful
// (re)connect so the owner can resynchronize state missed while
// disconnected.
type Feed struct {
	url         string
	handler     Handler
	onReconnect func()

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFeed creates an event feed for the websocket endpoint at url.
func NewFeed(url string, handler Handler, onReconnect func()) *Feed {
	return &Feed{
		url:         url,
		handler:     handler,
		onReconnect: onReconnect,
	}
}

// Start begins the connect/read loop in the background.
func (f *Feed) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	f.mu.Lock()
	f.cancel = cancel
	f.done = make(chan struct{})
	f.mu.Unlock()

	go f.run(ctx)
}

// Stop tears down the connection and waits for the loop to exit.
func (f *Feed) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	conn := f.conn
	done := f.done
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
}

func (f *Feed) run(ctx context.Context) {
	defer close(f.done)

	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("events: connect failed, retrying in %s: %v", backoff, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > reconnectMax {
				backoff = reconnectMax
			}
			continue
		}

		backoff = reconnectMin
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()

		if f.onReconnect != nil {
			f.onReconnect()
		}

		f.readLoop(ctx, conn)

		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
		conn.Close()
	}
}

type eventFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame eventFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				log.Printf("events: read failed, reconnecting: %v", err)
			}
			return
		}
		if frame.Event == "" {
			continue
		}
		f.handler(Event{Kind: frame.Event, Payload: frame.Payload})
	}
}
