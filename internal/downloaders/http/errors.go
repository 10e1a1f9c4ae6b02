package httpdl

import (
	"errors"
	"fmt"
)

var (
	ErrRangeIgnored  = errors.New("server ignored the range request")
	ErrShortBody     = errors.New("response body length mismatch")
	ErrLongBody      = errors.New("response body longer than the requested range")
	ErrContentRange  = errors.New("unexpected Content-Range")
	ErrRemoteChanged = errors.New("remote file changed since the partial download")
)

// ConnectionError means a request could not be sent (DNS, TCP, TLS).
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// HTTPStatusError is a response with a status the engine cannot use.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *HTTPStatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected status code %d from %s: %v", e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

func (e *HTTPStatusError) Unwrap() error { return e.Err }

// TransportError is a failure while streaming a response body. The chunk
// file keeps whatever was written before the failure.
type TransportError struct {
	Chunk int
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chunk %d transfer failed: %v", e.Chunk, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IOError is a local disk failure while writing a chunk file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i/o error on %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// MergeError is a failure while assembling chunk files into the output.
type MergeError struct {
	Path string
	Err  error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("error assembling %s: %v", e.Path, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }
