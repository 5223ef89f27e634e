package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/stream"
)

type fakeSource struct {
	state  camera.State
	stream *stream.Stream
}

func (f *fakeSource) DeviceID() string            { return "cam-test" }
func (f *fakeSource) State() camera.State         { return f.state }
func (f *fakeSource) Stream() *stream.Stream      { return f.stream }
func (f *fakeSource) Payload() (int, error)       { return 16384, nil }
func (f *fakeSource) FrameRate() (float64, error) { return 0, errors.New("no frame rate") }

func TestCameraCollectorWithoutStream(t *testing.T) {
	c := NewCameraCollector(&fakeSource{})

	// acquiring and payload; the frame rate read fails and is skipped.
	if n := testutil.CollectAndCount(c); n != 2 {
		t.Errorf("Expected 2 metrics, got %d", n)
	}
}

func TestCameraCollectorStream(t *testing.T) {
	s := stream.New(4)
	for i := 0; i < 3; i++ {
		if err := s.PushBuffer(stream.NewBuffer(4)); err != nil {
			t.Fatal(err)
		}
	}
	b := s.PopInputBuffer()
	b.Status = stream.StatusFilled
	s.PushOutputBuffer(b)
	s.PopInputBuffer()
	s.Abort()

	c := NewCameraCollector(&fakeSource{state: camera.StateAcquiring, stream: s})

	expected := `
# HELP camnode_camera_acquiring 1 while acquisition is running
# TYPE camnode_camera_acquiring gauge
camnode_camera_acquiring{device="cam-test"} 1
# HELP camnode_stream_buffers_completed_total Buffers filled successfully
# TYPE camnode_stream_buffers_completed_total counter
camnode_stream_buffers_completed_total{device="cam-test"} 1
# HELP camnode_stream_buffers_aborted_total Buffers returned unfilled by a stop or payload change
# TYPE camnode_stream_buffers_aborted_total counter
camnode_stream_buffers_aborted_total{device="cam-test"} 1
# HELP camnode_stream_queue_depth Buffers waiting in a stream queue
# TYPE camnode_stream_queue_depth gauge
camnode_stream_queue_depth{device="cam-test",queue="input"} 1
camnode_stream_queue_depth{device="cam-test",queue="output"} 2
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"camnode_camera_acquiring",
		"camnode_stream_buffers_completed_total",
		"camnode_stream_buffers_aborted_total",
		"camnode_stream_queue_depth",
	)
	if err != nil {
		t.Errorf("Unexpected metrics: %v", err)
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(acquisitionStarts.WithLabelValues("counter-test"))
	IncAcquisitionStarts("counter-test")
	if got := testutil.ToFloat64(acquisitionStarts.WithLabelValues("counter-test")); got != before+1 {
		t.Errorf("Expected %v acquisition starts, got %v", before+1, got)
	}

	okBefore := testutil.ToFloat64(evaluations.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(evaluations.WithLabelValues("error"))
	ObserveEvaluation(nil)
	ObserveEvaluation(errors.New("parse error"))
	if got := testutil.ToFloat64(evaluations.WithLabelValues("ok")); got != okBefore+1 {
		t.Errorf("Expected %v ok evaluations, got %v", okBefore+1, got)
	}
	if got := testutil.ToFloat64(evaluations.WithLabelValues("error")); got != errBefore+1 {
		t.Errorf("Expected %v failed evaluations, got %v", errBefore+1, got)
	}

	ObserveRequest(http.MethodGet, "/api/health", 200, 5*time.Millisecond)
	if got := testutil.ToFloat64(apiRequests.WithLabelValues(http.MethodGet, "/api/health", "200")); got < 1 {
		t.Errorf("Expected at least 1 request, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	IncAcquisitionStarts("handler-test")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "camnode_camera_acquisition_starts_total") {
		t.Error("Expected camnode metrics in response")
	}
}
