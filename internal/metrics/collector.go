package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/stream"
)

// Source is the camera state a CameraCollector reads at scrape time.
type Source interface {
	DeviceID() string
	State() camera.State
	Stream() *stream.Stream
	Payload() (int, error)
	FrameRate() (float64, error)
}

// CameraCollector exports stream statistics and camera configuration. Values
// are read on every scrape, so nothing has to be pushed from the hot path.
type CameraCollector struct {
	source Source

	completed  *prometheus.Desc
	failures   *prometheus.Desc
	underruns  *prometheus.Desc
	aborted    *prometheus.Desc
	queueDepth *prometheus.Desc
	acquiring  *prometheus.Desc
	payload    *prometheus.Desc
	frameRate  *prometheus.Desc
}

func NewCameraCollector(source Source) *CameraCollector {
	labels := []string{"device"}
	desc := func(subsystem, name, help string, extra ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, append(labels, extra...), nil)
	}
	return &CameraCollector{
		source:     source,
		completed:  desc("stream", "buffers_completed_total", "Buffers filled successfully"),
		failures:   desc("stream", "buffers_failed_total", "Buffers the device failed to fill"),
		underruns:  desc("stream", "underruns_total", "Frames dropped because no input buffer was queued"),
		aborted:    desc("stream", "buffers_aborted_total", "Buffers returned unfilled by a stop or payload change"),
		queueDepth: desc("stream", "queue_depth", "Buffers waiting in a stream queue", "queue"),
		acquiring:  desc("camera", "acquiring", "1 while acquisition is running"),
		payload:    desc("camera", "payload_bytes", "Size of one frame in bytes"),
		frameRate:  desc("camera", "frame_rate_hz", "Configured acquisition frame rate"),
	}
}

// Describe implements prometheus.Collector.
func (c *CameraCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.completed, c.failures, c.underruns, c.aborted,
		c.queueDepth, c.acquiring, c.payload, c.frameRate,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *CameraCollector) Collect(ch chan<- prometheus.Metric) {
	id := c.source.DeviceID()

	acquiring := 0.0
	if c.source.State() == camera.StateAcquiring {
		acquiring = 1
	}
	ch <- prometheus.MustNewConstMetric(c.acquiring, prometheus.GaugeValue, acquiring, id)

	if payload, err := c.source.Payload(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.payload, prometheus.GaugeValue, float64(payload), id)
	}
	if fps, err := c.source.FrameRate(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.frameRate, prometheus.GaugeValue, fps, id)
	}

	s := c.source.Stream()
	if s == nil {
		return
	}
	st := s.Statistics()
	ch <- prometheus.MustNewConstMetric(c.completed, prometheus.CounterValue, float64(st.Completed), id)
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(st.Failures), id)
	ch <- prometheus.MustNewConstMetric(c.underruns, prometheus.CounterValue, float64(st.Underruns), id)
	ch <- prometheus.MustNewConstMetric(c.aborted, prometheus.CounterValue, float64(st.Aborted), id)
	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(st.Input), id, "input")
	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(st.Output), id, "output")
}
