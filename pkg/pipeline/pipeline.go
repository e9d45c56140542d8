// Package pipeline provides a bounded producer stage: a goroutine that
// generates values into a buffered channel so downstream work can overlap
// with the next upstream fetch without unbounded buffering.
package pipeline

import (
	"context"
	"fmt"
)

// Result carries either a produced value or the error that ended production.
type Result[T any] struct {
	Data T
	Err  error
}

// Stream is the consuming end of a producer stage.
type Stream[T any] struct {
	c      chan Result[T]
	cancel context.CancelFunc
}

// C returns the result channel. It is closed when the producer returns.
func (s *Stream[T]) C() <-chan Result[T] {
	return s.c
}

// Stop cancels the producer. Pending buffered results remain readable.
func (s *Stream[T]) Stop() {
	s.cancel()
}

// Emit pushes one value downstream. It reports false when the stage has
// been cancelled, at which point the producer should return.
type Emit[T any] func(v T) bool

// Generate starts a producer goroutine with a buffer of depth values. The
// producer's error, or a recovered panic, is delivered as the final result
// before the channel closes.
func Generate[T any](ctx context.Context, depth int, produce func(ctx context.Context, emit Emit[T]) error) *Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		c:      make(chan Result[T], depth),
		cancel: cancel,
	}

	emit := func(v T) bool {
		select {
		case s.c <- Result[T]{Data: v}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(s.c)
		defer func() {
			if rec := recover(); rec != nil {
				select {
				case s.c <- Result[T]{Err: fmt.Errorf("producer panicked: %v", rec)}:
				case <-ctx.Done():
				}
			}
		}()

		if err := produce(ctx, emit); err != nil {
			select {
			case s.c <- Result[T]{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return s
}
