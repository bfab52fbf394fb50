// Package feed implements a latest-wins change feed.
//
// A Feed broadcasts values to any number of subscribers. Delivery is
// monotonic: a slow subscriber sees the newest published value, never a stale
// value after a newer one was already observable. This backs the live-snapshot
// contract between the stores and the query engines.
package feed

import (
	"context"
	"sync"
)

type Feed[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
}

func New[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]chan T)}
}

// Publish delivers v to every subscriber, replacing any value a subscriber
// has not consumed yet. Publish never blocks.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- v:
		default:
			// Drop the pending stale value, then deliver the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Subscribe registers a new subscriber. The channel is closed when ctx is
// cancelled or the returned stop function is called; values published before
// Subscribe are not replayed.
func (f *Feed[T]) Subscribe(ctx context.Context) (<-chan T, func()) {
	ch := make(chan T, 1)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		stop()
	}()

	return ch, stop
}

// Len returns the current subscriber count.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
