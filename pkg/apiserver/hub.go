package apiserver

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// hub fans connectivity updates out to websocket subscribers.
type hub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	subs     map[*websocket.Conn]*sync.Mutex
}

func newHub() *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: map[*websocket.Conn]*sync.Mutex{},
	}
}

// serve upgrades the request, sends first if non-nil and keeps the
// subscriber until it disconnects.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, first *Message) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debugf("ws upgrade failed: %v", err)
		return
	}
	wmu := &sync.Mutex{}
	if first != nil {
		if err := c.WriteJSON(first); err != nil {
			c.Close()
			return
		}
	}
	h.mu.Lock()
	h.subs[c] = wmu
	n := len(h.subs)
	h.mu.Unlock()
	logger.Debugf("ws subscriber connected from %s (%d total)", r.RemoteAddr, n)
	go h.readLoop(c)
}

func (h *hub) readLoop(c *websocket.Conn) {
	defer h.drop(c)
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) drop(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.subs, c)
	h.mu.Unlock()
	c.Close()
}

func (h *hub) broadcast(msg Message) {
	h.mu.Lock()
	subs := make(map[*websocket.Conn]*sync.Mutex, len(h.subs))
	for c, m := range h.subs {
		subs[c] = m
	}
	h.mu.Unlock()
	for c, m := range subs {
		m.Lock()
		err := c.WriteJSON(msg)
		m.Unlock()
		if err != nil {
			logger.Debugf("ws send failed: %v", err)
			h.drop(c)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs {
		c.Close()
		delete(h.subs, c)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
