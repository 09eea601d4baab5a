package persist

import (
	"errors"
	"fmt"
)

var (
	// ErrSend is matched by every *SendError: the queue no longer accepts
	// commands because this handle was closed or the worker has terminated.
	ErrSend = errors.New("persist: queue closed")

	// ErrConnection is matched by every *ConnectionError.
	ErrConnection = errors.New("persist: connection failed")
)

// SendError is returned synchronously by enqueue operations when
// persistence is unavailable. Callers decide whether to treat it as fatal
// or continue memory-only.
type SendError struct {
	Kind string
	Key  string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("persist: cannot enqueue %s %q: queue closed", e.Kind, e.Key)
}

func (e *SendError) Is(target error) bool { return target == ErrSend }

// ConnectionError is returned by Connect when the read pool cannot be
// established.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("persist: connect %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }
