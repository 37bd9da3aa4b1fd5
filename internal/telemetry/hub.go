//
//
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radio-control/netctl/internal/config"
)

// Event represents a telemetry event with SSE formatting.
type Event struct {
	ID        int64                  `json:"id,omitempty"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Interface string                 `json:"interface,omitempty"`
}

// Client represents an SSE client connection.
type Client struct {
	ID        string
	Writer    http.ResponseWriter
	Request   *http.Request
	Context   context.Context
	Cancel    context.CancelFunc
	LastID    int64
	Interface string
	Events    chan Event
	once      sync.Once
	mu        sync.Mutex // Protect Writer access
}

// SnapshotFunc supplies the payload of the ready event sent to new clients.
type SnapshotFunc func() interface{}

// Hub manages SSE telemetry distribution with per-interface buffering.
//
// Lock ordering: h.mu before EventBuffer.mu. Client.once guards the single
// close of a client's channel.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	ids     map[string]*int64 // Monotonic event IDs per interface

	// Per-interface event buffers
	buffers map[string]*EventBuffer

	config   *config.TimingConfig
	clock    clock.Clock
	logger   *zap.Logger
	snapshot SnapshotFunc

	heartbeatTicker *clock.Ticker
	stopHeartbeat   chan struct{}

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// EventBuffer maintains a bounded buffer of events for one interface.
type EventBuffer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	nextID   int64
}

// NewHub creates a new telemetry hub with the specified configuration.
func NewHub(timingConfig *config.TimingConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		ids:     make(map[string]*int64),
		buffers: make(map[string]*EventBuffer),
		config:  timingConfig,
		clock:   clock.New(),
		logger:  logger.Named("telemetry"),
		done:    make(chan struct{}),
	}
}

// SetClock replaces the heartbeat clock. Call before the first Subscribe.
func (h *Hub) SetClock(clk clock.Clock) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clock = clk
}

// SetSnapshotFunc sets the ready-event payload source.
func (h *Hub) SetSnapshotFunc(fn SnapshotFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

// Subscribe handles SSE client subscription with Last-Event-ID resume support.
// The optional "interface" query parameter limits the stream to one
// interface plus global events. Blocks until the client goes away.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	clientCtx, cancel := context.WithCancel(ctx)

	lastEventID := int64(0)
	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if id, err := strconv.ParseInt(lastIDStr, 10, 64); err == nil {
			lastEventID = id
		}
	}

	client := &Client{
		ID:        uuid.NewString(),
		Writer:    w,
		Request:   r,
		Context:   clientCtx,
		Cancel:    cancel,
		LastID:    lastEventID,
		Interface: r.URL.Query().Get("interface"),
		Events:    make(chan Event, 100),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	h.logger.Debug("client subscribed",
		zap.String("client", client.ID),
		zap.String("interface", client.Interface),
		zap.Int64("lastEventId", lastEventID))

	if err := h.sendReadyEvent(client); err != nil {
		h.unregisterClient(client.ID)
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	if lastEventID > 0 {
		if err := h.replayEvents(client, lastEventID); err != nil {
			h.unregisterClient(client.ID)
			return fmt.Errorf("failed to replay events: %w", err)
		}
	}

	h.mu.Lock()
	if len(h.clients) == 1 && h.heartbeatTicker == nil {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	h.handleClient(client)
	return nil
}

// Publish publishes an event to all connected clients.
func (h *Hub) Publish(event Event) error {
	if event.ID == 0 {
		event.ID = h.getNextEventID(event.Interface)
	}

	if event.Interface != "" {
		h.bufferEvent(event)
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.Interface != "" && event.Interface != "" && client.Interface != event.Interface {
			continue
		}
		select {
		case <-client.Context.Done():
			continue
		case <-h.done:
			return nil
		case client.Events <- event:
		case <-time.After(100 * time.Millisecond):
			h.logger.Debug("dropped event for slow client",
				zap.String("client", client.ID),
				zap.String("event", event.Type))
		}
	}

	return nil
}

// PublishInterface publishes an event for a specific interface.
func (h *Hub) PublishInterface(name string, event Event) error {
	event.Interface = name
	return h.Publish(event)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) sendReadyEvent(client *Client) error {
	h.mu.RLock()
	fn := h.snapshot
	h.mu.RUnlock()

	var snapshot interface{} = map[string]interface{}{}
	if fn != nil {
		snapshot = fn()
	}

	// ready carries no ID so it never shifts a client's resume point
	return h.sendEventToClient(client, Event{
		Type: EventReady,
		Data: map[string]interface{}{"snapshot": snapshot},
	})
}

// replayEvents replays buffered events for a client based on Last-Event-ID.
func (h *Hub) replayEvents(client *Client, lastEventID int64) error {
	h.mu.RLock()
	buffer, exists := h.buffers[client.Interface]
	h.mu.RUnlock()

	if !exists {
		return nil
	}

	for _, event := range buffer.GetEventsAfter(lastEventID) {
		if err := h.sendEventToClient(client, event); err != nil {
			return err
		}
	}
	return nil
}

// sendEventToClient sends a single event to a client via SSE.
func (h *Hub) sendEventToClient(client *Client, event Event) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if event.ID > 0 {
		if _, err := fmt.Fprintf(client.Writer, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(client.Writer, "event: %s\n", event.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(client.Writer, "data: %s\n\n", string(data)); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if flusher, ok := client.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// handleClient delivers queued events until the client context ends.
func (h *Hub) handleClient(client *Client) {
	defer func() {
		client.once.Do(func() {
			close(client.Events)
		})
		h.unregisterClient(client.ID)
	}()

	for {
		select {
		case <-client.Context.Done():
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			if err := h.sendEventToClient(client, event); err != nil {
				h.logger.Debug("client write failed", zap.String("client", client.ID), zap.Error(err))
				return
			}
		}
	}
}

// unregisterClient removes a client from the hub.
func (h *Hub) unregisterClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, exists := h.clients[clientID]
	if !exists {
		return
	}
	client.Cancel()
	delete(h.clients, clientID)

	if len(h.clients) == 0 && h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
		if h.stopHeartbeat != nil {
			close(h.stopHeartbeat)
			h.stopHeartbeat = nil
		}
	}
}

// getNextEventID returns the next monotonic event ID for an interface.
func (h *Hub) getNextEventID(name string) int64 {
	if name == "" {
		name = globalStream
	}

	h.mu.RLock()
	counter, exists := h.ids[name]
	h.mu.RUnlock()
	if exists {
		return atomic.AddInt64(counter, 1)
	}

	h.mu.Lock()
	counter, exists = h.ids[name]
	if !exists {
		counter = new(int64)
		h.ids[name] = counter
	}
	h.mu.Unlock()

	return atomic.AddInt64(counter, 1)
}

// bufferEvent adds an event to the per-interface buffer. Buffers are never
// removed, so a reference stays valid after h.mu is released.
func (h *Hub) bufferEvent(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buffer, exists := h.buffers[event.Interface]
	if !exists {
		buffer = NewEventBuffer(h.config.EventBufferSize)
		h.buffers[event.Interface] = buffer
	}
	buffer.AddEvent(event)
}

// startHeartbeat starts the heartbeat ticker. Caller holds h.mu.
func (h *Hub) startHeartbeat() {
	interval := h.config.HeartbeatInterval + h.config.HeartbeatJitter/2

	ticker := h.clock.Ticker(interval)
	stop := make(chan struct{})
	h.heartbeatTicker = ticker
	h.stopHeartbeat = stop

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ticker.C:
				h.sendHeartbeat()
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

func (h *Hub) sendHeartbeat() {
	_ = h.Publish(Event{
		Type: EventHeartbeat,
		Data: map[string]interface{}{
			"ts": h.clock.Now().UTC().Format(time.RFC3339),
		},
	})
}

// Stop disconnects every client and stops the heartbeat. Safe to call twice.
func (h *Hub) Stop() {
	h.stopOnce.Do(h.stop)
}

func (h *Hub) stop() {
	close(h.done)

	h.mu.Lock()
	for _, client := range h.clients {
		client.Cancel()
	}
	if h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
	}
	if h.stopHeartbeat != nil {
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		h.logger.Warn("heartbeat goroutine did not stop in time")
	}

	h.mu.Lock()
	h.clients = make(map[string]*Client)
	h.mu.Unlock()
}

// NewEventBuffer creates a new event buffer with the specified capacity.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
		nextID:   1,
	}
}

// AddEvent appends an event, dropping the oldest beyond capacity.
func (b *EventBuffer) AddEvent(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if event.ID == 0 {
		event.ID = b.nextID
		b.nextID++
	}

	b.events = append(b.events, event)
	if len(b.events) > b.capacity {
		b.events = b.events[1:]
	}
}

// GetEventsAfter returns events after the specified ID.
func (b *EventBuffer) GetEventsAfter(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, event := range b.events {
		if event.ID > lastID {
			result = append(result, event)
		}
	}
	return result
}

// GetCapacity returns the buffer capacity.
func (b *EventBuffer) GetCapacity() int {
	return b.capacity
}

// GetSize returns the current buffer size.
func (b *EventBuffer) GetSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
