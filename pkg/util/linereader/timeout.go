package linereader

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrTimeout is returned by Recv when nothing was received within the interval.
var ErrTimeout = errors.New("no value received before timeout")

// ErrClosed is returned by Recv when the channel is closed.
var ErrClosed = errors.New("channel closed")

// Recv waits for the next value of ch for at most interval.
// It returns ErrTimeout when the interval elapses, ErrClosed when ch is closed
// and the context error when ctx is done. A non-positive interval waits forever.
func Recv[T any](ctx context.Context, ch <-chan T, interval time.Duration) (T, error) {
	var zero T
	var timeout <-chan time.Time
	if interval > 0 {
		t := time.NewTimer(interval)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case v, ok := <-ch:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-timeout:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
