package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Arax734/bookshare-app-sub001/internal/metrics"
)

const (
	queueSize        = 1000
	clientQueueSize  = 100
	defaultHeartbeat = 30 * time.Second
	minHeartbeat     = time.Second
)

// Client is one open event stream. A user may hold several (one per tab).
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
	UserID      string
}

// Manager routes queued events to the streams of the addressed user.
// Events without a UserID (heartbeats) go to every stream.
type Manager struct {
	logger    *slog.Logger
	queue     chan Event
	heartbeat time.Duration
	loop      sync.WaitGroup

	mu      sync.RWMutex
	streams map[string]map[string]*Client // userID -> clientID -> client
	owners  map[string]string             // clientID -> userID

	closeMu sync.RWMutex
	closed  bool
}

// NewManager creates a Manager with the default heartbeat.
func NewManager(logger *slog.Logger) *Manager {
	return NewManagerWithHeartbeat(logger, defaultHeartbeat)
}

// NewManagerWithHeartbeat creates a Manager that pings every stream at the
// given interval, clamped to at least one second.
func NewManagerWithHeartbeat(logger *slog.Logger, heartbeat time.Duration) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		logger:    logger,
		queue:     make(chan Event, queueSize),
		heartbeat: max(heartbeat, minHeartbeat),
		streams:   make(map[string]map[string]*Client),
		owners:    make(map[string]string),
	}
}

// Start delivers queued events until ctx is cancelled or Shutdown drains the
// queue. Run it once, in its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.loop.Add(1)
	defer m.loop.Done()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	m.logger.Info("SSE manager started", "heartbeat", m.heartbeat)
	for {
		select {
		case event, ok := <-m.queue:
			if !ok {
				m.dropAll()
				return
			}
			m.deliver(event)
		case <-ticker.C:
			m.deliver(NewHeartbeatEvent())
		case <-ctx.Done():
			m.logger.Info("SSE manager stopped")
			m.dropAll()
			return
		}
	}
}

// Shutdown closes the queue, waits for Start to drain it, and closes every
// stream. Calling it again is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.closeMu.Unlock()

	drained := make(chan struct{})
	go func() {
		m.loop.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		m.logger.Warn("SSE shutdown timed out; queued events dropped")
		return ctx.Err()
	}

	m.dropAll()
	return nil
}

// targets returns the streams an event is addressed to. Callers hold mu.
func (m *Manager) targets(event Event) []*Client {
	if event.UserID != "" {
		out := make([]*Client, 0, len(m.streams[event.UserID]))
		for _, c := range m.streams[event.UserID] {
			out = append(out, c)
		}
		return out
	}
	out := make([]*Client, 0, len(m.owners))
	for _, byID := range m.streams {
		for _, c := range byID {
			out = append(out, c)
		}
	}
	return out
}

func (m *Manager) deliver(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dropped := 0
	for _, c := range m.targets(event) {
		select {
		case c.EventChan <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		m.logger.Warn("SSE stream too slow, event dropped",
			"event_type", event.Type,
			"user_id", event.UserID,
			"dropped", dropped,
		)
	}
}

// Connect opens a stream for userID.
func (m *Manager) Connect(userID string) *Client {
	c := &Client{
		ConnectedAt: time.Now(),
		EventChan:   make(chan Event, clientQueueSize),
		Done:        make(chan struct{}),
		ID:          uuid.NewString(),
		UserID:      userID,
	}

	m.mu.Lock()
	if m.streams[userID] == nil {
		m.streams[userID] = make(map[string]*Client)
	}
	m.streams[userID][c.ID] = c
	m.owners[c.ID] = userID
	total := len(m.owners)
	m.mu.Unlock()

	metrics.SSEClients.Inc()
	m.logger.Debug("SSE stream opened", "client_id", c.ID, "user_id", userID, "streams", total)
	return c
}

// Disconnect closes a stream. Unknown ids are ignored.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c := m.remove(clientID)
	m.mu.Unlock()

	if c != nil {
		m.logger.Debug("SSE stream closed",
			"client_id", clientID,
			"user_id", c.UserID,
			"duration", time.Since(c.ConnectedAt),
		)
	}
}

// remove unregisters and closes a stream. Callers hold mu.
func (m *Manager) remove(clientID string) *Client {
	userID, ok := m.owners[clientID]
	if !ok {
		return nil
	}
	c := m.streams[userID][clientID]
	delete(m.owners, clientID)
	delete(m.streams[userID], clientID)
	if len(m.streams[userID]) == 0 {
		delete(m.streams, userID)
	}
	close(c.Done)
	close(c.EventChan)
	metrics.SSEClients.Dec()
	return c
}

// Emit queues an event. Events emitted after Shutdown, or while the queue is
// full, are dropped.
func (m *Manager) Emit(event Event) {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- event:
	default:
		m.logger.Error("SSE queue full, event dropped", "event_type", event.Type, "user_id", event.UserID)
	}
}

// EmitToUser queues an event for userID's streams only.
func (m *Manager) EmitToUser(userID string, event Event) {
	event.UserID = userID
	m.Emit(event)
}

// ClientCount returns the number of open streams.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.owners)
}

// UserConnected reports whether userID has at least one open stream.
func (m *Manager) UserConnected(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.streams[userID]) > 0
}

func (m *Manager) dropAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for clientID := range m.owners {
		m.remove(clientID)
	}
}
