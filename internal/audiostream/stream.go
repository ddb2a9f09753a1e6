// Package audiostream delivers a fully synthesized audio buffer to a
// pull-based consumer as an ordered sequence of bounded chunks.
package audiostream

import (
	"bytes"
	"fmt"
	"io"
	"iter"
)

// DefaultChunkSize is the largest chunk Next returns unless overridden.
const DefaultChunkSize = 4096

// State is the position of a Stream in its lifecycle.
type State int

const (
	StateInit State = iota
	StateHeaderPending
	StateStreaming
	StateDrained
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHeaderPending:
		return "header_pending"
	case StateStreaming:
		return "streaming"
	case StateDrained:
		return "drained"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StreamError reports a failed read of the underlying buffer. It is
// returned once; every later Next returns io.EOF.
type StreamError struct {
	Offset int64
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("audio stream read at offset %d: %v", e.Offset, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Option configures a Stream.
type Option func(*Stream)

// WithChunkSize sets the maximum chunk length. Non-positive values keep the
// default.
func WithChunkSize(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithHeader makes the first chunk exactly h, ahead of any buffer bytes.
func WithHeader(h []byte) Option {
	return func(s *Stream) {
		s.header = h
	}
}

// Stream is a single-use cursor over an audio buffer. It is not safe for
// concurrent use; one consumer pulls at its own pace.
type Stream struct {
	r         io.ReaderAt
	size      int64
	offset    int64
	chunkSize int
	header    []byte
	state     State
}

// New streams an in-memory buffer.
func New(buf []byte, opts ...Option) *Stream {
	return NewReaderAt(bytes.NewReader(buf), int64(len(buf)), opts...)
}

// NewReaderAt streams size bytes read from r.
func NewReaderAt(r io.ReaderAt, size int64, opts ...Option) *Stream {
	s := &Stream{
		r:         r,
		size:      size,
		chunkSize: DefaultChunkSize,
		state:     StateInit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Stream) State() State { return s.state }

// Size returns the total number of bytes the stream will deliver,
// including any header.
func (s *Stream) Size() int64 { return int64(len(s.header)) + s.size }

// Offset returns how many buffer bytes, excluding the header, have been
// delivered.
func (s *Stream) Offset() int64 { return s.offset }

// Next returns the next chunk. Once the buffer is exhausted it returns
// nil, io.EOF on every call. Chunks are never empty.
func (s *Stream) Next() ([]byte, error) {
	if s.state == StateInit {
		s.start()
	}

	switch s.state {
	case StateHeaderPending:
		s.state = StateStreaming
		if s.offset >= s.size {
			s.state = StateDrained
		}
		return s.header, nil
	case StateStreaming:
		return s.read()
	}
	return nil, io.EOF
}

func (s *Stream) start() {
	switch {
	case len(s.header) > 0:
		s.state = StateHeaderPending
	case s.size > 0:
		s.state = StateStreaming
	default:
		s.state = StateDrained
	}
}

func (s *Stream) read() ([]byte, error) {
	n := min(int64(s.chunkSize), s.size-s.offset)
	buf := make([]byte, n)

	read, err := s.r.ReadAt(buf, s.offset)
	if int64(read) == n {
		// ReaderAt may report io.EOF alongside the final full read.
		err = nil
	}
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		s.state = StateFailed
		return nil, &StreamError{Offset: s.offset, Err: err}
	}

	s.offset += n
	if s.offset >= s.size {
		s.state = StateDrained
	}
	return buf, nil
}

// All returns an iterator over the remaining chunks. A StreamError is
// yielded once as the final element.
func (s *Stream) All() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			chunk, err := s.Next()
			if err == io.EOF {
				return
			}
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}
