// Package hammer calls a function from many goroutines released at the same
// moment, to surface races in state they share.
package hammer

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Run invokes test concurrently in P goroutines, each looping N times, and
// returns the first error. Goroutines are only released once all of them are
// running. ctx passed to test is canceled after the first error.
//
// Here's an example:
//
//	P := 8               // max count of goroutines
//	N := 1000            // work per goroutine
//	if testing.Short() { // Adjust down if `-test.short`
//		P = 4
//		N = 100
//	}
//
//	err := hammer.Run(ctx, P, N, func(ctx context.Context, p, n int) error {
//		_, err := s.Add(ctx, int32(p), int32(n))
//		return err
//	})
func Run(ctx context.Context, P, N int, test func(ctx context.Context, p, n int) error) error {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(P / 2)) // Ensure goroutines have to switch cores.

	var running sync.WaitGroup
	release := make(chan struct{})

	g, ctx := errgroup.WithContext(ctx)
	running.Add(P)
	for p := 0; p < P; p++ {
		g.Go(func() error {
			running.Done()
			<-release
			for n := 0; n < N; n++ {
				if err := test(ctx, p, n); err != nil {
					return fmt.Errorf("goroutine %d, call %d: %w", p, n, err)
				}
			}
			return nil
		})
	}

	running.Wait()
	close(release)
	return g.Wait()
}
