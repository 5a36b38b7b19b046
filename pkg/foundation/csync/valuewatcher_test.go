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
	"testing"
	"time"

	"github.com/matryer/is"
	"go.uber.org/goleak"
)

func TestValueWatcher_GetEmptyValue(t *testing.T) {
	is := is.New(t)

	var h ValueWatcher[int]
	is.Equal(0, h.Get())
}

func TestValueWatcher_SetGet(t *testing.T) {
	is := is.New(t)

	var h ValueWatcher[string]
	h.Set("started")
	is.Equal("started", h.Get())
}

func TestValueWatcher_CompareAndSet(t *testing.T) {
	is := is.New(t)

	var h ValueWatcher[int]
	is.True(h.CompareAndSet(WatchValues(0), 1))
	is.True(!h.CompareAndSet(WatchValues(0), 2))
	is.Equal(1, h.Get())
}

func TestValueWatcher_WatchSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)
	is := is.New(t)

	var h ValueWatcher[int]

	putValue := make(chan int)
	defer close(putValue)
	go func() {
		for val := range putValue {
			h.Set(val)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	i := 0
	val, err := h.Watch(ctx, func(val int) bool {
		i++
		switch i {
		case 1:
			is.Equal(0, val) // first call is with the current value
			putValue <- 123
			return false
		case 2:
			is.Equal(123, val)
			putValue <- 555
			return false
		case 3:
			is.Equal(555, val)
			return true
		default:
			is.Fail() // unexpected call
			return false
		}
	})
	is.NoErr(err)
	is.Equal(3, i)
	is.Equal(555, val)
}

func TestValueWatcher_WatchContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	is := is.New(t)

	var h ValueWatcher[int]
	h.Set(1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*10)
	defer cancel()

	i := 0
	val, err := h.Watch(ctx, func(val int) bool {
		i++
		is.Equal(1, val)
		return false
	})

	is.Equal(ctx.Err(), err)
	is.Equal(1, i)
	is.Equal(0, val)
}

func TestValueWatcher_WatchMultiple(t *testing.T) {
	const watcherCount = 50
	defer goleak.VerifyNone(t)
	is := is.New(t)

	var h ValueWatcher[int]

	// started waits until all watchers saw the initial value
	var started sync.WaitGroup
	// found waits until all watchers found the final value
	var found sync.WaitGroup

	started.Add(watcherCount)
	found.Add(watcherCount)
	for i := 0; i < watcherCount; i++ {
		go func() {
			defer found.Done()
			var once sync.Once
			val, err := h.Watch(context.Background(), func(val int) bool {
				once.Do(started.Done)
				return val == watcherCount
			})
			is.NoErr(err)
			is.Equal(val, watcherCount)
		}()
	}

	err := waitTimeout(&started, time.Second)
	is.NoErr(err)

	for i := 1; i <= watcherCount; i++ {
		h.Set(i)
	}

	is.NoErr(waitTimeout(&found, time.Second))
}

// waitTimeout waits for wg, or returns context.DeadlineExceeded after d.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(d):
		return context.DeadlineExceeded
	}
}
