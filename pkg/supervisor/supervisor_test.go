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

package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/matryer/is"
	"go.uber.org/goleak"
)

func isDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func TestSupervisor_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)
	is := is.New(t)
	ctx := context.Background()

	s := New(log.Test(t))
	is.Equal(s.State(), StateRunning)
	is.True(!isDone(s.Stopping()))
	is.True(!isDone(s.Stopped()))

	var finished atomic.Bool
	err := s.Go("worker", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Millisecond * 20) // drain
		finished.Store(true)
		return nil
	})
	is.NoErr(err)

	is.NoErr(s.Stop(ctx, "test"))
	is.True(finished.Load()) // stop waits for tracked work
	is.Equal(s.State(), StateStopped)
	is.True(isDone(s.Stopping()))
	is.True(isDone(s.Stopped()))
	is.Equal(s.Reason(), "test")
}

func TestSupervisor_StopWithoutTasks(t *testing.T) {
	defer goleak.VerifyNone(t)
	is := is.New(t)

	s := New(log.Test(t))
	is.NoErr(s.Stop(context.Background(), "no tasks"))
	is.Equal(s.State(), StateStopped)
}

func TestSupervisor_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	is := is.New(t)
	ctx := context.Background()

	s := New(log.Test(t))
	is.NoErr(s.Stop(ctx, "first"))
	is.NoErr(s.Stop(ctx, "second"))
	is.Equal(s.State(), StateStopped)
	is.Equal(s.Reason(), "first")
}

func TestSupervisor_GoAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	is := is.New(t)

	s := New(log.Test(t))
	is.NoErr(s.Stop(context.Background(), "test"))

	err := s.Go("late", func(context.Context) error {
		is.Fail() // must not run
		return nil
	})
	is.True(cerrors.Is(err, ErrStopped))
}

func TestSupervisor_GoWhileStopping(t *testing.T) {
	defer goleak.VerifyNone(t)
	is := is.New(t)
	ctx := context.Background()

	s := New(log.Test(t))
	release := make(chan struct{})
	is.NoErr(s.Go("blocking", func(context.Context) error {
		<-release
		return nil
	}))

	stopDone := make(chan struct{})
	go func() {
		defer close(stopDone)
		_ = s.Stop(ctx, "test")
	}()

	is.NoErr(waitForState(s, StateStopRequested))
	err := s.Go("late", func(context.Context) error { return nil })
	is.True(cerrors.Is(err, ErrStopping))

	close(release)
	<-stopDone
	is.Equal(s.State(), StateStopped)
}

func TestSupervisor_StopDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)
	is := is.New(t)

	s := New(log.Test(t))
	release := make(chan struct{})
	is.NoErr(s.Go("stuck", func(context.Context) error {
		// ignores the stop signal
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
	defer cancel()

	start := time.Now()
	is.NoErr(s.Stop(ctx, "deadline")) // reaching the deadline is not an error
	is.True(time.Since(start) < time.Second)
	is.True(isDone(s.Stopped()))
	is.Equal(s.State(), StateStopped)

	// later calls return immediately
	is.NoErr(s.Stop(context.Background(), "again"))

	close(release)
	is.NoErr(waitForTasks(s))
}

func TestSupervisor_TaskErrorDoesNotStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	is := is.New(t)

	s := New(log.Test(t))
	done := make(chan struct{})
	is.NoErr(s.Go("failing", func(context.Context) error {
		defer close(done)
		return cerrors.New("boom")
	}))
	<-done

	is.NoErr(s.Go("panicking", func(context.Context) error {
		panic("boom")
	}))
	time.Sleep(time.Millisecond * 10)

	is.Equal(s.State(), StateRunning)
	is.True(!isDone(s.Stopping()))
	is.NoErr(s.Stop(context.Background(), "test"))
}

func TestSupervisor_Wait(t *testing.T) {
	defer goleak.VerifyNone(t)
	is := is.New(t)

	s := New(log.Test(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*10)
	defer cancel()
	is.Equal(s.Wait(ctx), context.DeadlineExceeded)

	go func() {
		time.Sleep(time.Millisecond * 10)
		_ = s.Stop(context.Background(), "test")
	}()
	is.NoErr(s.Wait(context.Background()))
	is.Equal(s.State(), StateStopped)
}

func TestState_String(t *testing.T) {
	is := is.New(t)
	is.Equal(StateRunning.String(), "Running")
	is.Equal(StateStopRequested.String(), "StopRequested")
	is.Equal(StateStopped.String(), "Stopped")
	is.Equal(State(7).String(), "State(7)")
}

func waitForState(s *Supervisor, want State) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := s.state.Watch(ctx, func(st State) bool { return st == want })
	return err
}

// waitForTasks waits until all tracked goroutines returned.
func waitForTasks(s *Supervisor) error {
	select {
	case <-s.t.Dead():
		return nil
	case <-time.After(time.Second):
		return cerrors.New("tasks did not finish")
	}
}
