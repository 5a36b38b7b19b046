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

package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/matryer/is"
)

func TestBus_PublishNoObservers(t *testing.T) {
	is := is.New(t)

	b := New[int](log.Nop())
	b.Publish(context.Background(), 1)
	is.Equal(b.Len(), 0)
}

func TestBus_RegistrationOrder(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	b := New[string](log.Test(t))
	var got []string
	for _, name := range []string{"first", "second", "third"} {
		b.Connect(func(_ context.Context, e string) {
			got = append(got, name+":"+e)
		})
	}
	is.Equal(b.Len(), 3)

	b.Publish(ctx, "a")
	b.Publish(ctx, "b")

	is.Equal(got, []string{
		"first:a", "second:a", "third:a",
		"first:b", "second:b", "third:b",
	})
}

func TestBus_Disconnect(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	b := New[int](log.Test(t))
	var first, second int
	h1 := b.Connect(func(context.Context, int) { first++ })
	b.Connect(func(context.Context, int) { second++ })

	b.Publish(ctx, 1)
	h1.Disconnect()
	b.Publish(ctx, 2)

	is.Equal(first, 1)
	is.Equal(second, 2)
	is.Equal(b.Len(), 1)
}

func TestBus_DisconnectIdempotent(t *testing.T) {
	is := is.New(t)

	b := New[int](log.Test(t))
	h1 := b.Connect(func(context.Context, int) {})
	h2 := b.Connect(func(context.Context, int) {})

	h1.Disconnect()
	h1.Disconnect() // must not remove h2
	is.Equal(b.Len(), 1)

	h2.Disconnect()
	is.Equal(b.Len(), 0)

	var nilHandle *Handle
	nilHandle.Disconnect()
}

func TestBus_DisconnectDuringPublish(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	b := New[int](log.Test(t))
	var second int
	var h2 *Handle
	b.Connect(func(context.Context, int) {
		// disconnect the next observer while the publish is in progress
		h2.Disconnect()
	})
	h2 = b.Connect(func(context.Context, int) { second++ })

	b.Publish(ctx, 1)
	is.Equal(second, 0)
	is.Equal(b.Len(), 1)
}

func TestBus_ConnectDuringPublish(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	b := New[int](log.Test(t))
	var late int
	b.Connect(func(context.Context, int) {
		b.Connect(func(context.Context, int) { late++ })
	})

	b.Publish(ctx, 1) // the new observer is not part of this publish
	is.Equal(late, 0)
	b.Publish(ctx, 2)
	is.Equal(late, 1)
}

func TestBus_ObserverPanic(t *testing.T) {
	is := is.New(t)

	b := New[int](log.Test(t))
	var called bool
	b.Connect(func(context.Context, int) { panic("boom") })
	b.Connect(func(context.Context, int) { called = true })

	b.Publish(context.Background(), 1)
	is.True(called)
}

func TestBus_NilObserver(t *testing.T) {
	is := is.New(t)

	b := New[int](log.Test(t))
	h := b.Connect(nil)
	is.Equal(b.Len(), 0)
	h.Disconnect()
}

func TestBus_ConcurrentPublishAndDisconnect(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	b := New[int](log.Nop())
	var afterDisconnect atomic.Int32
	var disconnected atomic.Bool

	h := b.Connect(func(context.Context, int) {
		if disconnected.Load() {
			afterDisconnect.Add(1)
		}
	})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					b.Publish(ctx, 1)
				}
			}
		}()
	}

	time.Sleep(time.Millisecond * 10)
	h.Disconnect()
	// publishes that already passed the connected check can still be running,
	// wait for them to finish before setting the flag
	time.Sleep(time.Millisecond * 10)
	disconnected.Store(true)
	time.Sleep(time.Millisecond * 10)
	close(stop)
	wg.Wait()

	is.Equal(afterDisconnect.Load(), int32(0))
}
