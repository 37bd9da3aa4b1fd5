package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/radio-control/netctl/internal/config"
)

// threadSafeResponseWriter captures SSE events in a thread-safe way
type threadSafeResponseWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	headers http.Header
}

func newThreadSafeResponseWriter() *threadSafeResponseWriter {
	return &threadSafeResponseWriter{
		headers: make(http.Header),
	}
}

func (w *threadSafeResponseWriter) Header() http.Header {
	return w.headers
}

func (w *threadSafeResponseWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(data)
}

func (w *threadSafeResponseWriter) WriteHeader(statusCode int) {}

func (w *threadSafeResponseWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func testTiming() *config.TimingConfig {
	timing := config.Defaults().Timing
	return &timing
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func subscribe(t *testing.T, hub *Hub, target string, lastID string) (*threadSafeResponseWriter, context.CancelFunc, chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	w := newThreadSafeResponseWriter()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Subscribe(ctx, w, req)
	}()
	waitFor(t, func() bool { return strings.Contains(w.String(), "event: ready") })
	return w, cancel, done
}

func TestNewHub(t *testing.T) {
	cfg := testTiming()
	hub := NewHub(cfg, nil)
	defer hub.Stop()

	if hub.clients == nil || hub.ids == nil || hub.buffers == nil {
		t.Fatal("Hub maps not initialized")
	}
	if hub.config != cfg {
		t.Error("Hub config not set correctly")
	}
}

func TestHubPublishInterface(t *testing.T) {
	hub := NewHub(testTiming(), nil)
	defer hub.Stop()

	err := hub.PublishInterface("wlan0", Event{
		Type: EventDHCPBound,
		Data: map[string]interface{}{"address": "192.168.4.2"},
	})
	if err != nil {
		t.Fatalf("PublishInterface() failed: %v", err)
	}

	hub.mu.RLock()
	buffer, exists := hub.buffers["wlan0"]
	hub.mu.RUnlock()

	if !exists {
		t.Fatal("Event buffer not created for interface")
	}
	if buffer.GetSize() != 1 {
		t.Errorf("Expected 1 event in buffer, got %d", buffer.GetSize())
	}
}

func TestHubGlobalEventsNotBuffered(t *testing.T) {
	hub := NewHub(testTiming(), nil)
	defer hub.Stop()

	if err := hub.Publish(Event{Type: EventSettingsChanged}); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if len(hub.buffers) != 0 {
		t.Errorf("Expected no buffers, got %d", len(hub.buffers))
	}
}

func TestEventIDsMonotonicPerInterface(t *testing.T) {
	hub := NewHub(testTiming(), nil)
	defer hub.Stop()

	for i := 0; i < 3; i++ {
		_ = hub.PublishInterface("wlan0", Event{Type: EventDHCPRenew})
		_ = hub.PublishInterface("eth0", Event{Type: EventStaticApplied})
	}

	for _, name := range []string{"wlan0", "eth0"} {
		events := hub.buffers[name].GetEventsAfter(0)
		if len(events) != 3 {
			t.Fatalf("%s: expected 3 events, got %d", name, len(events))
		}
		for i, ev := range events {
			if ev.ID != int64(i+1) {
				t.Errorf("%s: event %d has ID %d", name, i, ev.ID)
			}
		}
	}
}

func TestEventBuffer(t *testing.T) {
	capacity := 5
	buffer := NewEventBuffer(capacity)

	if buffer.GetCapacity() != capacity {
		t.Errorf("Expected capacity %d, got %d", capacity, buffer.GetCapacity())
	}
	if buffer.GetSize() != 0 {
		t.Errorf("Expected initial size 0, got %d", buffer.GetSize())
	}

	for i := 0; i < 7; i++ {
		buffer.AddEvent(Event{Type: "test", Data: map[string]interface{}{"index": i}})
	}

	if buffer.GetSize() != capacity {
		t.Errorf("Expected size %d, got %d", capacity, buffer.GetSize())
	}

	// IDs 3..7 survive
	if events := buffer.GetEventsAfter(2); len(events) != 5 {
		t.Errorf("Expected 5 events after ID 2, got %d", len(events))
	}
	if events := buffer.GetEventsAfter(5); len(events) != 2 {
		t.Errorf("Expected 2 events after ID 5, got %d", len(events))
	}
}

func TestSubscribeReadyCarriesSnapshot(t *testing.T) {
	hub := NewHub(testTiming(), nil)
	defer hub.Stop()
	hub.SetSnapshotFunc(func() interface{} {
		return map[string]interface{}{"interfaces": []string{"sim0"}}
	})

	w, cancel, done := subscribe(t, hub, "/telemetry", "")
	defer func() { cancel(); <-done }()

	out := w.String()
	if !strings.Contains(out, `"interfaces":["sim0"]`) {
		t.Errorf("ready event missing snapshot: %q", out)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestSubscribeReceivesPublished(t *testing.T) {
	hub := NewHub(testTiming(), nil)
	defer hub.Stop()

	w, cancel, done := subscribe(t, hub, "/telemetry", "")
	defer func() { cancel(); <-done }()

	_ = hub.PublishInterface("wlan0", Event{Type: EventDHCPBound, Data: map[string]interface{}{"address": "10.0.0.2"}})

	waitFor(t, func() bool { return strings.Contains(w.String(), "event: dhcpBound") })
	if !strings.Contains(w.String(), `"address":"10.0.0.2"`) {
		t.Errorf("missing event data: %q", w.String())
	}
}

func TestSubscribeInterfaceFilter(t *testing.T) {
	hub := NewHub(testTiming(), nil)
	defer hub.Stop()

	w, cancel, done := subscribe(t, hub, "/telemetry?interface=eth0", "")
	defer func() { cancel(); <-done }()

	_ = hub.PublishInterface("wlan0", Event{Type: EventDHCPStart})
	_ = hub.PublishInterface("eth0", Event{Type: EventStaticApplied})
	_ = hub.Publish(Event{Type: EventSettingsChanged})

	waitFor(t, func() bool { return strings.Contains(w.String(), "event: settingsChanged") })
	out := w.String()
	if strings.Contains(out, "event: dhcpStart") {
		t.Errorf("received event for another interface: %q", out)
	}
	if !strings.Contains(out, "event: staticApplied") {
		t.Errorf("missing event for subscribed interface: %q", out)
	}
}

func TestSubscribeReplaysAfterLastEventID(t *testing.T) {
	hub := NewHub(testTiming(), nil)
	defer hub.Stop()

	for i := 0; i < 4; i++ {
		_ = hub.PublishInterface("wlan0", Event{Type: EventDHCPRenew, Data: map[string]interface{}{"n": i}})
	}

	w, cancel, done := subscribe(t, hub, "/telemetry?interface=wlan0", "2")
	defer func() { cancel(); <-done }()

	waitFor(t, func() bool { return strings.Contains(w.String(), "id: 4\n") })
	out := w.String()
	if !strings.Contains(out, "id: 3\n") {
		t.Errorf("missing replayed event 3: %q", out)
	}
	if strings.Contains(out, `"n":1`) {
		t.Errorf("replayed event at or before Last-Event-ID: %q", out)
	}
}

func TestHeartbeat(t *testing.T) {
	mock := clock.NewMock()
	cfg := testTiming()
	hub := NewHub(cfg, nil)
	hub.SetClock(mock)
	defer hub.Stop()

	w, cancel, done := subscribe(t, hub, "/telemetry", "")
	defer func() { cancel(); <-done }()

	waitFor(t, func() bool {
		mock.Add(cfg.HeartbeatInterval + cfg.HeartbeatJitter)
		return strings.Contains(w.String(), "event: heartbeat")
	})
}

func TestClientUnregisteredOnCancel(t *testing.T) {
	hub := NewHub(testTiming(), nil)
	defer hub.Stop()

	_, cancel, done := subscribe(t, hub, "/telemetry", "")
	if hub.ClientCount() != 1 {
		t.Fatalf("Expected 1 client, got %d", hub.ClientCount())
	}
	cancel()
	<-done
	if hub.ClientCount() != 0 {
		t.Errorf("Expected 0 clients after cancel, got %d", hub.ClientCount())
	}
}

func TestHubStop(t *testing.T) {
	hub := NewHub(testTiming(), nil)

	_, _, done := subscribe(t, hub, "/telemetry", "")
	hub.Stop()
	<-done

	if hub.ClientCount() != 0 {
		t.Errorf("Expected 0 clients after stop, got %d", hub.ClientCount())
	}
	// second Stop is a no-op
	hub.Stop()
}
