package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/models"
)

const writeWait = 5 * time.Second

type hubMessage struct {
	deviceID string
	alert    models.Alert
}

// Subscriber is the write side of a WebSocket connection.
// *websocket.Conn satisfies it.
type Subscriber interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v interface{}) error
	Close() error
}

// Hub pushes committed alerts to the WebSocket connections a device has
// opened on /ws/alerts. A single goroutine writes; the subscriber map lock
// is never held during a write.
type Hub struct {
	deviceClients map[string]map[Subscriber]bool
	broadcast     chan hubMessage
	done          chan struct{}
	closeOnce     sync.Once
	mu            sync.Mutex
}

// NewHub starts the broadcast goroutine; call Close to stop it.
func NewHub(buffer int) *Hub {
	hub := &Hub{
		deviceClients: make(map[string]map[Subscriber]bool),
		broadcast:     make(chan hubMessage, buffer),
		done:          make(chan struct{}),
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for {
		select {
		case msg := <-h.broadcast:
			h.deliver(msg)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) deliver(msg hubMessage) {
	h.mu.Lock()
	conns := make([]Subscriber, 0, len(h.deviceClients[msg.deviceID]))
	for conn := range h.deviceClients[msg.deviceID] {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg.alert); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"device_id": msg.deviceID,
				"conn_ptr":  fmt.Sprintf("%p", conn),
			}).Info("Alert subscriber unreachable, unregistering.")
			h.Unregister(msg.deviceID, conn)
			conn.Close()
		}
	}
}

// Register subscribes conn to deviceID's alerts.
func (h *Hub) Register(deviceID string, conn Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.deviceClients[deviceID]; !ok {
		h.deviceClients[deviceID] = make(map[Subscriber]bool)
	}
	h.deviceClients[deviceID][conn] = true
	logrus.WithFields(logrus.Fields{
		"device_id": deviceID,
		"conn_ptr":  fmt.Sprintf("%p", conn),
	}).Info("Alert subscriber registered.")
}

func (h *Hub) Unregister(deviceID string, conn Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(deviceID, conn)
}

func (h *Hub) removeLocked(deviceID string, conn Subscriber) {
	clients, ok := h.deviceClients[deviceID]
	if !ok {
		return
	}
	delete(clients, conn)
	if len(clients) == 0 {
		delete(h.deviceClients, deviceID)
	}
}

// Subscribers reports how many connections deviceID has open.
func (h *Hub) Subscribers(deviceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.deviceClients[deviceID])
}

func (h *Hub) Name() string { return "websocket" }

// Publish enqueues alerts for delivery. A full buffer drops the alert
// and reports an error; the alert is still readable via ListUnread.
func (h *Hub) Publish(ctx context.Context, deviceID string, list []models.Alert) error {
	for _, a := range list {
		select {
		case h.broadcast <- hubMessage{deviceID: deviceID, alert: a}:
		default:
			return fmt.Errorf("alert broadcast buffer full, dropped alert %s", a.ID)
		}
	}
	return nil
}

// Close stops the broadcast loop and closes every subscriber.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for deviceID, clients := range h.deviceClients {
			for conn := range clients {
				conn.Close()
			}
			delete(h.deviceClients, deviceID)
		}
	})
}
