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

package csync

import (
	"context"
	"sync"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/cchan"
)

// ValueWatcher holds a value that can be read and replaced concurrently. In
// addition to Get and Set, callers can Watch the value and block until it
// satisfies a condition. The zero value is ready to use.
type ValueWatcher[T any] struct {
	m       sync.Mutex
	val     T
	changed chan struct{}
}

type ValueWatcherFunc[T any] func(val T) bool

// WatchValues returns a ValueWatcherFunc that matches any of the supplied
// values.
func WatchValues[T comparable](want ...T) ValueWatcherFunc[T] {
	if len(want) == 0 {
		// this would block forever, prevent misuse
		panic("invalid use of WatchValues, need to supply at least one value")
	}
	return func(val T) bool {
		for _, w := range want {
			if val == w {
				return true
			}
		}
		return false
	}
}

// Set stores val and wakes up all watchers.
func (h *ValueWatcher[T]) Set(val T) {
	h.m.Lock()
	defer h.m.Unlock()

	h.val = val
	if h.changed != nil {
		close(h.changed)
		h.changed = nil
	}
}

// CompareAndSet stores val only if f returns true for the current value. It
// reports whether the value was replaced.
func (h *ValueWatcher[T]) CompareAndSet(f ValueWatcherFunc[T], val T) bool {
	h.m.Lock()
	defer h.m.Unlock()

	if !f(h.val) {
		return false
	}
	h.val = val
	if h.changed != nil {
		close(h.changed)
		h.changed = nil
	}
	return true
}

// Get returns the current value.
func (h *ValueWatcher[T]) Get() T {
	h.m.Lock()
	defer h.m.Unlock()
	return h.val
}

// Watch calls f with the current value and then again every time the value
// changes, until f returns true. The matching value is returned. Values set in
// quick succession can be coalesced, f always sees the latest one. If ctx is
// done before f matches, the context error is returned.
func (h *ValueWatcher[T]) Watch(ctx context.Context, f ValueWatcherFunc[T]) (T, error) {
	for {
		val, changed := h.snapshot()
		if f(val) {
			return val, nil
		}
		if err := cchan.Closed(ctx, changed); err != nil {
			var zero T
			return zero, err
		}
	}
}

func (h *ValueWatcher[T]) snapshot() (T, <-chan struct{}) {
	h.m.Lock()
	defer h.m.Unlock()

	if h.changed == nil {
		h.changed = make(chan struct{})
	}
	return h.val, h.changed
}
