package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camnode/internal/logging"
)

// WaitForever makes PopBuffer block until a buffer arrives or the stream is
// aborted or closed.
const WaitForever time.Duration = -1

var (
	ErrSizeMismatch = errors.New("buffer size does not match payload")
	ErrClosed       = errors.New("stream closed")
	ErrAborted      = errors.New("stream aborted")
	ErrAlreadyOwned = errors.New("buffer already owned by stream")
)

// CallbackType identifies the fill agent event passed to a Callback.
type CallbackType int

const (
	CallbackInit CallbackType = iota
	CallbackBufferDone
	CallbackExit
)

func (c CallbackType) String() string {
	switch c {
	case CallbackInit:
		return "init"
	case CallbackBufferDone:
		return "buffer-done"
	case CallbackExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Callback is invoked from the fill goroutine. The buffer is nil for Init and Exit.
type Callback func(CallbackType, *Buffer)

// Statistics counts buffer outcomes since the stream was created.
type Statistics struct {
	Completed uint64 `json:"completed"`
	Failures  uint64 `json:"failures"`
	Underruns uint64 `json:"underruns"`
	Aborted   uint64 `json:"aborted"`
	Input     int    `json:"input"`
	Output    int    `json:"output"`
}

type Option func(*Stream)

// WithCapacity pre-sizes the queues for n buffers.
func WithCapacity(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.input = make([]*Buffer, 0, n)
			s.output = make([]*Buffer, 0, n)
		}
	}
}

func WithCallback(cb Callback) Option {
	return func(s *Stream) { s.callback = cb }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Stream) { s.logger = logger }
}

// Stream holds buffers waiting to be filled (input), buffers held by the fill
// agent (in flight) and filled buffers waiting for the consumer (output).
// Output order is completion order.
type Stream struct {
	mu       sync.Mutex
	payload  int
	input    []*Buffer
	inflight map[*Buffer]struct{}
	output   []*Buffer
	closed   bool

	// owned holds every buffer in input, in flight or in output.
	owned map[*Buffer]struct{}

	// wake is closed and replaced whenever waiters should re-check state.
	wake chan struct{}
	// aborts counts Abort calls so waiters started before an abort return.
	aborts uint64

	stats    Statistics
	callback Callback
	logger   *slog.Logger
}

// New creates a stream for buffers of payload bytes.
func New(payload int, opts ...Option) *Stream {
	s := &Stream{
		payload:  payload,
		inflight: make(map[*Buffer]struct{}),
		owned:    make(map[*Buffer]struct{}),
		wake:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.GetLogger("stream")
	}
	return s
}

// Payload returns the buffer size this stream accepts.
func (s *Stream) Payload() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// PushBuffer queues an empty buffer for filling. It never blocks. A buffer the
// stream still owns is rejected with ErrAlreadyOwned.
func (s *Stream) PushBuffer(b *Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrSizeMismatch)
	}
	if len(b.Data) != s.payload {
		return fmt.Errorf("%w: got %d bytes, payload is %d", ErrSizeMismatch, len(b.Data), s.payload)
	}
	if _, ok := s.owned[b]; ok {
		return ErrAlreadyOwned
	}

	b.Clear()
	s.owned[b] = struct{}{}
	s.input = append(s.input, b)
	return nil
}

// PopBuffer removes the oldest filled buffer. A zero timeout polls, WaitForever
// (any negative value) blocks. It returns nil on expiry, or when the stream is
// aborted or closed while waiting.
func (s *Stream) PopBuffer(timeout time.Duration) *Buffer {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	b, _ := s.pop(context.Background(), expired, timeout != 0)
	return b
}

// PopBufferContext waits for a filled buffer until ctx is done. It returns
// ErrAborted or ErrClosed when the stream stops under it.
func (s *Stream) PopBufferContext(ctx context.Context) (*Buffer, error) {
	return s.pop(ctx, nil, true)
}

func (s *Stream) pop(ctx context.Context, expired <-chan time.Time, block bool) (*Buffer, error) {
	s.mu.Lock()
	aborts := s.aborts
	for {
		if len(s.output) > 0 {
			b := s.output[0]
			s.output[0] = nil
			s.output = s.output[1:]
			delete(s.owned, b)
			s.mu.Unlock()
			return b, nil
		}
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		if s.aborts != aborts {
			s.mu.Unlock()
			return nil, ErrAborted
		}
		if !block {
			s.mu.Unlock()
			return nil, nil
		}

		wake := s.wake
		s.mu.Unlock()

		select {
		case <-wake:
		case <-expired:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		s.mu.Lock()
	}
}

// PopInputBuffer hands the oldest queued buffer to the fill agent. It returns nil
// and counts an underrun when none is queued.
func (s *Stream) PopInputBuffer() *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if len(s.input) == 0 {
		s.stats.Underruns++
		return nil
	}

	b := s.input[0]
	s.input[0] = nil
	s.input = s.input[1:]
	s.inflight[b] = struct{}{}
	return b
}

// PushOutputBuffer returns a buffer from the fill agent. Buffers that were
// already reclaimed by Abort or Close are ignored.
func (s *Stream) PushOutputBuffer(b *Buffer) {
	s.mu.Lock()
	if _, ok := s.inflight[b]; !ok || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.inflight, b)

	switch b.Status {
	case StatusFilled:
		s.stats.Completed++
	case StatusAborted:
		s.stats.Aborted++
	default:
		s.stats.Failures++
	}
	s.output = append(s.output, b)
	s.broadcast()
	cb := s.callback
	s.mu.Unlock()

	if cb != nil {
		cb(CallbackBufferDone, b)
	}
}

// Notify forwards a fill agent lifecycle event to the stream callback.
func (s *Stream) Notify(t CallbackType) {
	s.mu.Lock()
	cb := s.callback
	s.mu.Unlock()
	if cb != nil {
		cb(t, nil)
	}
}

// SetPayload changes the accepted buffer size. Queued input buffers of another
// size are marked aborted and moved to the output queue.
func (s *Stream) SetPayload(payload int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payload == s.payload {
		return
	}
	s.payload = payload

	kept := s.input[:0]
	moved := 0
	for _, b := range s.input {
		if len(b.Data) == payload {
			kept = append(kept, b)
			continue
		}
		b.Status = StatusAborted
		s.output = append(s.output, b)
		s.stats.Aborted++
		moved++
	}
	for i := len(kept); i < len(s.input); i++ {
		s.input[i] = nil
	}
	s.input = kept

	if moved > 0 {
		s.logger.Debug("Payload changed, returned mismatched buffers", "payload", payload, "buffers", moved)
		s.broadcast()
	}
}

// Abort reclaims every in-flight buffer as aborted and wakes all waiting pops.
func (s *Stream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for b := range s.inflight {
		b.Status = StatusAborted
		s.output = append(s.output, b)
		s.stats.Aborted++
		delete(s.inflight, b)
	}
	s.aborts++
	s.broadcast()
}

// Close releases every buffer the stream still owns, each exactly once, and
// unblocks pending pops. Later calls return nil.
func (s *Stream) Close() []*Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	released := make([]*Buffer, 0, len(s.input)+len(s.inflight)+len(s.output))
	released = append(released, s.input...)
	for b := range s.inflight {
		released = append(released, b)
	}
	released = append(released, s.output...)

	s.input, s.output = nil, nil
	s.inflight = make(map[*Buffer]struct{})
	s.owned = make(map[*Buffer]struct{})
	s.broadcast()

	s.logger.Debug("Stream closed", "released", len(released))
	return released
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Input = len(s.input)
	st.Output = len(s.output)
	return st
}

func (s *Stream) NInputBuffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.input)
}

func (s *Stream) NOutputBuffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.output)
}

// broadcast wakes every waiter. Callers hold s.mu.
func (s *Stream) broadcast() {
	close(s.wake)
	s.wake = make(chan struct{})
}
