package service

import (
	"context"
	"sync"
)

// laneArena hands out one serialization lane per key. A lane is a one slot
// semaphore; it is created on first use and dropped once nobody holds or
// waits for it, so the arena only grows with the number of keys in flight.
type laneArena[K comparable] struct {
	mu    sync.Mutex
	lanes map[K]*lane
}

type lane struct {
	sem  chan struct{}
	refs int
}

func newLaneArena[K comparable]() *laneArena[K] {
	return &laneArena[K]{lanes: make(map[K]*lane)}
}

// acquire blocks until the lane for key is free or ctx is done. The returned
// release func must be called exactly once.
func (a *laneArena[K]) acquire(ctx context.Context, key K) (func(), error) {
	a.mu.Lock()
	l, ok := a.lanes[key]
	if !ok {
		l = &lane{sem: make(chan struct{}, 1)}
		a.lanes[key] = l
	}
	l.refs++
	a.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		a.unref(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			a.unref(key, l)
		})
	}, nil
}

func (a *laneArena[K]) unref(key K, l *lane) {
	a.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(a.lanes, key)
	}
	a.mu.Unlock()
}

// size reports how many lanes are currently live.
func (a *laneArena[K]) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.lanes)
}
