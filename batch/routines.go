package batch

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/remeh/sizedwaitgroup"
)

var ErrPanic = errors.New("panic")

// guard runs f and turns a panic into an error carrying the stack, so one
// broken unit cannot take its siblings down.
func guard(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return f()
}

func panicError(r any) error {
	buf := make([]byte, 100000)
	n := runtime.Stack(buf, false)
	return fmt.Errorf("%w: %v\n\n%s", ErrPanic, r, buf[:n])
}

// fanOut runs f over items on at most workers goroutines and collects the
// results f reports as kept. Order of the result is unspecified.
func fanOut[T any](workers int, items []string, f func(item string) (T, bool)) []T {
	results := make(chan T)
	done := make(chan []T)
	go func() {
		var out []T
		for r := range results {
			out = append(out, r)
		}
		done <- out
	}()

	swg := sizedwaitgroup.New(max(1, workers))
	for _, item := range items {
		item := item
		swg.Add()
		go func() {
			defer swg.Done()
			if r, ok := f(item); ok {
				results <- r
			}
		}()
	}
	swg.Wait()
	close(results)
	return <-done
}
