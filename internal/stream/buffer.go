package stream

import (
	"time"

	"github.com/smazurov/camnode/internal/types"
)

// Status describes the content of a buffer.
type Status int

const (
	StatusEmpty Status = iota
	StatusFilled
	StatusAborted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusFilled:
		return "filled"
	case StatusAborted:
		return "aborted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Buffer is a frame-sized block of memory. It is owned by exactly one side at a
// time: the stream while queued, the caller once popped.
type Buffer struct {
	Data        []byte
	Status      Status
	FrameID     uint64
	Timestamp   time.Time
	Region      types.Region
	PixelFormat types.PixelFormat
}

// NewBuffer allocates a buffer of size bytes.
func NewBuffer(size int) *Buffer {
	return &Buffer{Data: make([]byte, size)}
}

// Clear resets the frame metadata. The data is left in place.
func (b *Buffer) Clear() {
	b.Status = StatusEmpty
	b.FrameID = 0
	b.Timestamp = time.Time{}
	b.Region = types.Region{}
	b.PixelFormat = 0
}

// Size returns the buffer capacity in bytes.
func (b *Buffer) Size() int {
	return len(b.Data)
}
