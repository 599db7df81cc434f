package storage

import (
	"context"
	"io"

	"github.com/Astemirdum/book-rating-service/pkg/circuit_breaker"
)

// ImageStore keeps cover images and hands back an opaque public reference.
type ImageStore interface {
	Store(ctx context.Context, name string, r io.Reader, size int64, contentType string) (ref string, err error)
	Release(ctx context.Context, ref string) error
}

type guarded struct {
	next ImageStore
	cb   circuit_breaker.CircuitBreaker
}

// WithCircuitBreaker stops calling a failing backend until it recovers.
func WithCircuitBreaker(next ImageStore, cb circuit_breaker.CircuitBreaker) ImageStore {
	return &guarded{next: next, cb: cb}
}

func (g *guarded) Store(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	var ref string
	err := g.cb.Call(func() error {
		var err error
		ref, err = g.next.Store(ctx, name, r, size, contentType)
		return err
	})
	return ref, err
}

func (g *guarded) Release(ctx context.Context, ref string) error {
	return g.cb.Call(func() error {
		return g.next.Release(ctx, ref)
	})
}
