package nats

import (
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(ServerOptions{Port: RandomPort, Name: "test-server", Logger: testLogger()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(server.Stop)
	return server
}

func connectClient(t *testing.T, url string) *Client {
	t.Helper()
	client := NewClient(url, "cam-1", testLogger())
	if err := client.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func subscribe(t *testing.T, url, subject string) chan *nats.Msg {
	t.Helper()
	conn, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("Failed to connect subscriber: %v", err)
	}
	t.Cleanup(conn.Close)

	ch := make(chan *nats.Msg, 16)
	if _, err := conn.ChanSubscribe(subject, ch); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	return ch
}

func receive(t *testing.T, ch chan *nats.Msg) *nats.Msg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for message")
		return nil
	}
}

type fakeController struct {
	starts    atomic.Int32
	stops     atomic.Int32
	failStart atomic.Bool
}

func (f *fakeController) DeviceID() string { return "cam-1" }
func (f *fakeController) StartAcquisition() error {
	f.starts.Add(1)
	if f.failStart.Load() {
		return errors.New("no stream")
	}
	return nil
}
func (f *fakeController) StopAcquisition() error {
	f.stops.Add(1)
	return nil
}

type fakeStats struct {
	stream *stream.Stream
}

func (f *fakeStats) DeviceID() string       { return "cam-1" }
func (f *fakeStats) Stream() *stream.Stream { return f.stream }

func TestServerStartStop(t *testing.T) {
	server := NewServer(ServerOptions{Port: RandomPort, Name: "test-server", Logger: testLogger()})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if !server.IsRunning() {
		t.Error("Server should be running after Start()")
	}
	if err := server.Start(); err == nil {
		t.Error("Expected error starting a running server")
	}
	if server.ClientURL() == "" {
		t.Error("ClientURL should not be empty")
	}

	server.Stop()
	if server.IsRunning() {
		t.Error("Server should not be running after Stop()")
	}
	// Second stop is a no-op.
	server.Stop()
}

func TestServerDefaults(t *testing.T) {
	server := NewServer(ServerOptions{})
	if got := server.ClientURL(); got != "nats://127.0.0.1:4222" {
		t.Errorf("Expected default URL nats://127.0.0.1:4222, got %s", got)
	}
}

func TestClientGracefulDegradation(t *testing.T) {
	client := NewClient("nats://localhost:59999", "cam-1", testLogger())

	if err := client.Connect(); err == nil {
		t.Error("Connect should fail with non-existent server")
	}

	// No-ops without a connection.
	client.PublishState(StateMessage{DeviceID: "cam-1", State: "idle"})
	client.PublishStats(StatsMessage{DeviceID: "cam-1"})

	if err := client.Serve(&fakeController{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if client.IsConnected() {
		t.Error("Client should not be connected")
	}
	client.Close()
}

func TestClientPublishState(t *testing.T) {
	server := startServer(t)
	states := subscribe(t, server.ClientURL(), SubjectCameraState("cam-1"))
	client := connectClient(t, server.ClientURL())

	if !client.IsConnected() {
		t.Error("Client should be connected")
	}

	client.PublishState(StateMessage{
		DeviceID:  "cam-1",
		State:     "acquiring",
		Reason:    "test",
		Timestamp: time.Now().Format(time.RFC3339),
	})

	m, err := UnmarshalState(receive(t, states).Data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.State != "acquiring" || m.Reason != "test" {
		t.Errorf("Expected acquiring/test, got %s/%s", m.State, m.Reason)
	}
}

func TestControlRequests(t *testing.T) {
	server := startServer(t)
	client := connectClient(t, server.ClientURL())

	ctrl := &fakeController{}
	if err := client.Serve(ctrl); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	requester, err := NewRequester(server.ClientURL(), 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to create requester: %v", err)
	}
	defer requester.Close()

	if err := requester.Start("cam-1", "test"); err != nil {
		t.Errorf("Start failed: %v", err)
	}
	if err := requester.Stop("cam-1", ""); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if ctrl.starts.Load() != 1 || ctrl.stops.Load() != 1 {
		t.Errorf("Expected 1 start and 1 stop, got %d and %d", ctrl.starts.Load(), ctrl.stops.Load())
	}

	ctrl.failStart.Store(true)
	err = requester.Start("cam-1", "")
	if err == nil {
		t.Fatal("Expected start error to be returned")
	}
	if got := err.Error(); got != "start cam-1: no stream" {
		t.Errorf("Expected error 'start cam-1: no stream', got %q", got)
	}
}

func TestControlRequestUnknownCamera(t *testing.T) {
	server := startServer(t)

	requester, err := NewRequester(server.ClientURL(), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to create requester: %v", err)
	}
	defer requester.Close()

	if err := requester.Start("missing", ""); err == nil {
		t.Error("Expected error with no responder")
	}
}

func TestControlInvalidRequest(t *testing.T) {
	server := startServer(t)
	client := connectClient(t, server.ClientURL())
	if err := client.Serve(&fakeController{}); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	conn, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	msg, err := conn.Request(SubjectControl("cam-1", ActionStart), []byte("{"), 2*time.Second)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	reply, err := UnmarshalControlReply(msg.Data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if reply.OK || reply.Error == "" {
		t.Errorf("Expected failed reply with error, got %+v", reply)
	}
}

func TestEventBridge(t *testing.T) {
	server := startServer(t)
	states := subscribe(t, server.ClientURL(), SubjectCameraState("cam-1"))
	stats := subscribe(t, server.ClientURL(), SubjectCameraStats("cam-1"))
	client := connectClient(t, server.ClientURL())

	s := stream.New(4)
	if err := s.PushBuffer(stream.NewBuffer(4)); err != nil {
		t.Fatal(err)
	}

	bus := events.New()
	bridge := NewEventBridge(client, bus, &fakeStats{stream: s}, 20*time.Millisecond, testLogger())
	bridge.Start()
	defer bridge.Stop()

	bus.Publish(events.AcquisitionStateChangedEvent{DeviceID: "other", State: "acquiring"})
	bus.Publish(events.AcquisitionStateChangedEvent{DeviceID: "cam-1", State: "acquiring", Reason: "api"})

	m, err := UnmarshalState(receive(t, states).Data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.DeviceID != "cam-1" || m.State != "acquiring" {
		t.Errorf("Expected cam-1 acquiring, got %s %s", m.DeviceID, m.State)
	}

	st, err := UnmarshalStats(receive(t, stats).Data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if st.Stats.Input != 1 {
		t.Errorf("Expected 1 queued buffer, got %d", st.Stats.Input)
	}
}

func TestSubjectFunctions(t *testing.T) {
	tests := []struct {
		got      string
		expected string
	}{
		{SubjectCameraState("cam-1"), "camnode.cameras.cam-1.state"},
		{SubjectCameraStats("cam-1"), "camnode.cameras.cam-1.stats"},
		{SubjectControl("cam-1", ActionStart), "camnode.control.cam-1.start"},
		{SubjectControl("cam-1", ActionStop), "camnode.control.cam-1.stop"},
	}

	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("Got %s, want %s", tt.got, tt.expected)
		}
	}
}

func TestUnmarshalControlRequestEmpty(t *testing.T) {
	req, err := UnmarshalControlRequest(nil)
	if err != nil {
		t.Errorf("Expected empty body to be valid, got %v", err)
	}
	if req.Reason != "" {
		t.Errorf("Expected empty reason, got %s", req.Reason)
	}
}
