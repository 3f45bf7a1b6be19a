package feed

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Runnable is satisfied by every ingress adapter in this package.
type Runnable interface {
	Run(ctx context.Context) error
}

// RunAll starts every feed concurrently and waits for all of them to
// return. The first error cancels the shared context for the rest, the
// same fail-fast semantics errgroup gives the reference stack's own
// concurrent WS read loops.
func RunAll(ctx context.Context, feeds ...Runnable) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range feeds {
		f := f
		g.Go(func() error { return f.Run(gctx) })
	}
	return g.Wait()
}
