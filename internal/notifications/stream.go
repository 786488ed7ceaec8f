package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Frame is what a stream client receives after every change.
type Frame struct {
	Notifications []*models.Notification `json:"notifications"`
	Unread        int                    `json:"unread"`
}

// Connection wraps a websocket with the user it belongs to.
type Connection struct {
	Conn *websocket.Conn
	UID  string
}

// Manager tracks live notification streams per user.
type Manager struct {
	svc *Service

	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func NewManager(svc *Service) *Manager {
	return &Manager{svc: svc, connections: make(map[string]map[*Connection]struct{})}
}

func (m *Manager) add(uid string, conn *websocket.Conn) *Connection {
	c := &Connection{Conn: conn, UID: uid}
	m.mu.Lock()
	if _, ok := m.connections[uid]; !ok {
		m.connections[uid] = make(map[*Connection]struct{})
	}
	m.connections[uid][c] = struct{}{}
	n := len(m.connections[uid])
	m.mu.Unlock()
	logger.Debugf("notifications: stream connected uid=%s (total=%d)", uid, n)
	return c
}

func (m *Manager) remove(c *Connection) {
	m.mu.Lock()
	if conns, ok := m.connections[c.UID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(m.connections, c.UID)
		}
	}
	m.mu.Unlock()
	_ = c.Conn.Close()
	logger.Debugf("notifications: stream disconnected uid=%s", c.UID)
}

// Count returns the number of open streams of uid.
func (m *Manager) Count(uid string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections[uid])
}

// Serve pushes a Frame to conn after every change of uid's notifications until
// the client goes away or ctx is done. It owns conn and closes it.
func (m *Manager) Serve(ctx context.Context, uid string, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c := m.add(uid, conn)
	defer m.remove(c)

	updates, err := m.svc.Watch(ctx, uid)
	if err != nil {
		logger.Warnf("notifications: watch uid=%s: %v", uid, err)
		return
	}

	// reader: keeps pongs flowing and notices the client closing
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case list, ok := <-updates:
			if !ok {
				return
			}
			unread := 0
			for _, n := range list {
				if !n.Read {
					unread++
				}
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(Frame{Notifications: list, Unread: unread}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
