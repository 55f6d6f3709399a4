package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"cipherchat/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Subscribers are CLI clients, not browsers; there is no origin to check.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Subscribed is the first frame on a websocket, sent once the subscriber
// is registered. Envelopes follow.
type Subscribed struct {
	User domain.Username `json:"subscribed"`
}

type subscriber struct {
	user domain.Username
	conn *websocket.Conn
	send chan domain.WireEnvelope
	once sync.Once
}

func (c *subscriber) close() {
	c.once.Do(func() { close(c.send) })
}

// hub fans new envelopes out to connected subscribers.
type hub struct {
	mu   sync.RWMutex
	subs map[domain.Username]map[*subscriber]struct{}
	log  logrus.FieldLogger
}

func newHub(log logrus.FieldLogger) *hub {
	return &hub{subs: make(map[domain.Username]map[*subscriber]struct{}), log: log}
}

func (h *hub) add(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[c.user] == nil {
		h.subs[c.user] = make(map[*subscriber]struct{})
	}
	h.subs[c.user][c] = struct{}{}
}

func (h *hub) remove(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[c.user]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, c.user)
		}
	}
	c.close()
}

// publish delivers env to every subscriber of user. Slow subscribers miss
// the push; the envelope is still in the store.
func (h *hub) publish(user domain.Username, env domain.WireEnvelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[user] {
		select {
		case c.send <- env:
		default:
			h.log.WithFields(logrus.Fields{"user": user, "message_id": env.ID}).Warn("subscriber lagging; push dropped")
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for user, set := range h.subs {
		for c := range set {
			_ = c.conn.Close()
			c.close()
		}
		delete(h.subs, user)
	}
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := pathName(w, r, "user")
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).WithField("user", user).Warn("websocket upgrade failed")
		return
	}
	c := &subscriber{
		user: domain.Username(user),
		conn: conn,
		send: make(chan domain.WireEnvelope, sendBuffer),
	}
	s.hub.add(c)
	// Confirm registration so the client knows pushes will now reach it.
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Subscribed{User: c.user}); err != nil {
		s.hub.remove(c)
		_ = conn.Close()
		return
	}
	s.log.WithField("user", user).Info("subscriber connected")

	go s.writePump(c)
	s.readPump(c)
}

// readPump only watches for the peer going away; subscribers never send
// anything but control frames.
func (s *Server) readPump(c *subscriber) {
	defer func() {
		s.hub.remove(c)
		_ = c.conn.Close()
		s.log.WithField("user", c.user).Info("subscriber disconnected")
	}()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
