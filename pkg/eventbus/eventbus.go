// Copyright © 2024 Meroxa, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package eventbus provides a typed, synchronous publish/subscribe bus used to
// notify observers about things happening inside a component.
package eventbus

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
)

// Observer is notified about every event published after it was connected.
// Observers are called synchronously on the publishing goroutine, slow
// observers slow down the publisher.
type Observer[E any] func(ctx context.Context, event E)

// Bus delivers events of type E to connected observers in the order in which
// they were connected. Publishing works on an immutable snapshot of the
// observer list, so connecting or disconnecting never blocks a publisher and
// can safely happen from within an observer.
type Bus[E any] struct {
	logger log.CtxLogger

	// m serializes modifications of subscribers
	m           sync.Mutex
	subscribers atomic.Pointer[[]*subscriber[E]]
}

type subscriber[E any] struct {
	observer  Observer[E]
	connected atomic.Bool
}

// New creates an empty bus. The logger is used to report observers that
// panic.
func New[E any](logger log.CtxLogger) *Bus[E] {
	return &Bus[E]{
		logger: logger.WithComponent("eventbus.Bus"),
	}
}

// Connect registers an observer and returns the handle to disconnect it.
func (b *Bus[E]) Connect(observer Observer[E]) *Handle {
	if observer == nil {
		return &Handle{}
	}

	s := &subscriber[E]{observer: observer}
	s.connected.Store(true)

	b.m.Lock()
	defer b.m.Unlock()

	var next []*subscriber[E]
	if cur := b.subscribers.Load(); cur != nil {
		next = slices.Clone(*cur)
	}
	next = append(next, s)
	b.subscribers.Store(&next)

	return &Handle{disconnect: func() { b.disconnect(s) }}
}

func (b *Bus[E]) disconnect(s *subscriber[E]) {
	// flip the flag first, a publisher that already loaded a snapshot
	// containing s checks it right before calling the observer
	s.connected.Store(false)

	b.m.Lock()
	defer b.m.Unlock()

	cur := b.subscribers.Load()
	if cur == nil {
		return
	}
	next := slices.DeleteFunc(slices.Clone(*cur), func(other *subscriber[E]) bool {
		return other == s
	})
	b.subscribers.Store(&next)
}

// Publish notifies all connected observers about event. A panicking observer
// is logged and skipped, the remaining observers are still notified.
func (b *Bus[E]) Publish(ctx context.Context, event E) {
	subs := b.subscribers.Load()
	if subs == nil {
		return
	}
	for _, s := range *subs {
		if !s.connected.Load() {
			continue
		}
		b.notify(ctx, s, event)
	}
}

func (b *Bus[E]) notify(ctx context.Context, s *subscriber[E], event E) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(ctx).
				Str("panic", fmt.Sprint(r)).
				Msgf("observer panicked while handling %T", event)
		}
	}()
	s.observer(ctx, event)
}

// Len returns the number of connected observers.
func (b *Bus[E]) Len() int {
	subs := b.subscribers.Load()
	if subs == nil {
		return 0
	}
	return len(*subs)
}

// Handle represents a single registration on a Bus.
type Handle struct {
	once       sync.Once
	disconnect func()
}

// Disconnect removes the registration. After Disconnect returns the observer
// is not called by any publish that starts afterwards. Calling Disconnect more
// than once has no effect.
func (h *Handle) Disconnect() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.disconnect != nil {
			h.disconnect()
		}
	})
}
