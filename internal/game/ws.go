package game

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// ClientConn wraps a websocket connection with a buffered outbound queue.
// Writes go through send; if the client cannot keep up the push is dropped
// rather than blocking a mutation that holds the instance lock.
type ClientConn struct {
	WS   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		WS:   ws,
		send: make(chan []byte, 64),
	}
}

// Send returns the outbound queue for the writer loop.
func (c *ClientConn) Send() <-chan []byte { return c.send }

func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
		if c.WS != nil {
			_ = c.WS.Close()
		}
	})
}

// Subscribe registers a watcher and immediately queues the current state.
func (i *Instance) Subscribe(cc *ClientConn) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.watchers[cc] = struct{}{}
	i.sendLocked(cc, Envelope{Type: "state", Payload: mustJSON(i.buildStateLocked())})
}

func (i *Instance) Unsubscribe(cc *ClientConn) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.watchers, cc)
}

func (i *Instance) broadcastStateLocked() {
	if len(i.watchers) == 0 {
		return
	}
	env := Envelope{Type: "state", Payload: mustJSON(i.buildStateLocked())}
	for cc := range i.watchers {
		i.sendLocked(cc, env)
	}
}

// closeWatchersLocked tears down all subscriptions, used by eviction.
func (i *Instance) closeWatchersLocked() {
	for cc := range i.watchers {
		delete(i.watchers, cc)
		cc.Close()
	}
}

func (i *Instance) sendLocked(cc *ClientConn, env Envelope) {
	b, _ := json.Marshal(env)
	select {
	case cc.send <- b:
	default:
		// slow reader, drop the push; the state endpoint stays authoritative
	}
}
