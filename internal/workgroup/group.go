// Package workgroup provides a fixed-size group of cooperating goroutines
// with collective-call semantics.
package workgroup

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Group is a worker group of a fixed size.
type Group struct {
	size int
}

// New creates a group of size workers. size below 1 is treated as 1.
func New(size int) *Group {
	if size < 1 {
		size = 1
	}
	return &Group{size: size}
}

// Size returns the number of workers.
func (g *Group) Size() int { return g.size }

// Run calls fn once per rank concurrently and waits for all ranks, even
// after one has failed. The first error is returned; the context passed to
// fn is cancelled when any rank fails.
func (g *Group) Run(ctx context.Context, fn func(ctx context.Context, rank int) error) error {
	eg, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < g.size; rank++ {
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("rank %d panicked: %v", rank, r)
				}
			}()
			return fn(gctx, rank)
		})
	}
	return eg.Wait()
}

