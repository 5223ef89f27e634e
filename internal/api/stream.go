package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camnode/internal/api/models"
	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/capture"
	"github.com/smazurov/camnode/internal/stream"
)

func (s *Server) currentStream() (*stream.Stream, error) {
	st := s.camera.Stream()
	if st == nil || st.Closed() {
		return nil, huma.Error409Conflict("no stream; create one with POST /api/camera/stream")
	}
	return st, nil
}

// popFilled waits up to timeout for a filled buffer. Failed and aborted
// buffers are requeued and skipped; ones left over from an older payload are
// dropped.
func popFilled(ctx context.Context, st *stream.Stream, timeout time.Duration) (*stream.Buffer, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		b := st.PopBuffer(remaining)
		if b == nil {
			return nil, errNoBuffer()
		}
		if b.Status == stream.StatusFilled {
			return b, nil
		}
		if err := st.PushBuffer(b); err != nil && !errors.Is(err, stream.ErrSizeMismatch) {
			return nil, toHTTPError(err)
		}
		if ctx.Err() != nil || remaining == 0 {
			return nil, errNoBuffer()
		}
	}
}

func meanByte(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range data {
		sum += uint64(v)
	}
	return float64(sum) / float64(len(data))
}

func (s *Server) acquisitionResponse() *models.AcquisitionResponse {
	return &models.AcquisitionResponse{
		Body: models.AcquisitionData{
			DeviceID: s.camera.DeviceID(),
			State:    s.camera.State().String(),
		},
	}
}

func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "create-stream",
		Method:      http.MethodPost,
		Path:        "/api/camera/stream",
		Summary:     "Create Stream",
		Description: "Create the acquisition stream and queue buffers sized to the current payload. Replaces any previous stream.",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(_ context.Context, input *models.CreateStreamRequest) (*models.StreamResponse, error) {
		n := input.Body.Buffers
		if n <= 0 {
			n = 10
		}
		payload, err := s.camera.Payload()
		if err != nil {
			return nil, toHTTPError(err)
		}
		st, err := s.camera.CreateStream(n)
		if err != nil {
			return nil, toHTTPError(err)
		}
		for i := 0; i < n; i++ {
			if err := st.PushBuffer(stream.NewBuffer(payload)); err != nil {
				return nil, toHTTPError(err)
			}
		}
		return &models.StreamResponse{
			Body: models.StreamData{Payload: payload, Buffers: n},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-acquisition",
		Method:      http.MethodPost,
		Path:        "/api/camera/acquisition/start",
		Summary:     "Start Acquisition",
		Description: "Start filling queued buffers. Requires a stream.",
		Tags:        []string{"acquisition"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422},
	}, func(_ context.Context, _ *struct{}) (*models.AcquisitionResponse, error) {
		if err := s.camera.StartAcquisition(); err != nil {
			return nil, toHTTPError(err)
		}
		return s.acquisitionResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-acquisition",
		Method:      http.MethodPost,
		Path:        "/api/camera/acquisition/stop",
		Summary:     "Stop Acquisition",
		Description: "Stop acquisition. In-flight buffers are returned as aborted. Stopping while idle is a no-op.",
		Tags:        []string{"acquisition"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.AcquisitionResponse, error) {
		if err := s.camera.StopAcquisition(); err != nil {
			return nil, toHTTPError(err)
		}
		return s.acquisitionResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-statistics",
		Method:      http.MethodGet,
		Path:        "/api/camera/stream/statistics",
		Summary:     "Stream Statistics",
		Description: "Buffer counters and queue depths of the current stream",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(_ context.Context, _ *struct{}) (*models.StatisticsResponse, error) {
		st, err := s.currentStream()
		if err != nil {
			return nil, err
		}
		return &models.StatisticsResponse{Body: st.Statistics()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "pop-buffer",
		Method:      http.MethodGet,
		Path:        "/api/camera/stream/buffer",
		Summary:     "Pop Buffer",
		Description: "Wait for the next filled buffer, report its metadata and requeue it",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401, 408, 409},
	}, func(ctx context.Context, input *models.BufferInput) (*models.BufferResponse, error) {
		st, err := s.currentStream()
		if err != nil {
			return nil, err
		}
		b, err := popFilled(ctx, st, time.Duration(input.TimeoutMs)*time.Millisecond)
		if err != nil {
			return nil, err
		}
		data := models.BufferData{
			FrameID:     b.FrameID,
			Status:      b.Status.String(),
			Timestamp:   b.Timestamp,
			Region:      b.Region,
			PixelFormat: b.PixelFormat.String(),
			Size:        b.Size(),
			Mean:        meanByte(b.Data),
		}
		if err := st.PushBuffer(b); err != nil {
			s.logger.Warn("Failed to requeue buffer", "error", err)
		}
		return &models.BufferResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/camera/snapshot",
		Summary:     "Snapshot",
		Description: "Encode the next filled buffer as PNG. Raw Bayer frames are returned as grayscale.",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401, 408, 409, 422},
	}, func(ctx context.Context, input *models.BufferInput) (*models.SnapshotResponse, error) {
		if s.camera.State() != camera.StateAcquiring {
			return nil, huma.Error409Conflict("acquisition is not running")
		}
		st, err := s.currentStream()
		if err != nil {
			return nil, err
		}
		b, err := popFilled(ctx, st, time.Duration(input.TimeoutMs)*time.Millisecond)
		if err != nil {
			return nil, err
		}
		png, encodeErr := capture.EncodePNG(b)
		if err := st.PushBuffer(b); err != nil {
			s.logger.Warn("Failed to requeue buffer", "error", err)
		}
		if encodeErr != nil {
			return nil, toHTTPError(encodeErr)
		}
		return &models.SnapshotResponse{ContentType: "image/png", Body: png}, nil
	})
}
