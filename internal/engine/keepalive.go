package engine

import (
	"context"
	"sync"
)

// WorkGroup tracks in-flight event work so shutdown can drain it before the
// process suspends.
type WorkGroup struct {
	wg sync.WaitGroup
}

func NewWorkGroup() *WorkGroup {
	return &WorkGroup{}
}

func (g *WorkGroup) Go(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

func (g *WorkGroup) Track(fn func() error) error {
	g.wg.Add(1)
	defer g.wg.Done()
	return fn()
}

func (g *WorkGroup) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
