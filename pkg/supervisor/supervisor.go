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

// Package supervisor tracks long-running background work and coordinates its
// shutdown. Work is signalled to stop through the Stopping context and the
// supervisor waits for it to finish, up to a caller supplied deadline, before
// it fires the Stopped context.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/cchan"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/csync"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"gopkg.in/tomb.v2"
)

var (
	ErrStopping = cerrors.New("supervisor is stopping")
	ErrStopped  = cerrors.New("supervisor is stopped")
)

// State of a supervisor. Transitions only go forward.
type State int

const (
	StateRunning State = iota
	StateStopRequested
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateStopRequested:
		return "StopRequested"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Supervisor runs tracked tasks and stops them cooperatively.
type Supervisor struct {
	logger log.CtxLogger

	// t tracks all running tasks, it dies when a stop is requested
	t tomb.Tomb
	// m guards the check of the state and the registration of new tasks
	m     sync.Mutex
	state csync.ValueWatcher[State]

	stopping context.Context
	stopped  context.Context
	abandon  context.CancelFunc
	reason   string
}

// New creates a running supervisor.
func New(logger log.CtxLogger) *Supervisor {
	s := &Supervisor{
		logger: logger.WithComponent("supervisor.Supervisor"),
	}
	s.stopped, s.abandon = context.WithCancel(context.Background())
	// stopping is a child of stopped, firing stopped fires stopping as well
	s.stopping = s.t.Context(s.stopped)
	// keeps the tomb alive until a stop is requested, so Go never races
	// with the tomb dying on its own
	s.t.Go(func() error {
		<-s.t.Dying()
		return nil
	})
	return s
}

// Stopping returns a context that is done as soon as a stop is requested.
func (s *Supervisor) Stopping() context.Context {
	return s.stopping
}

// Stopped returns a context that is done once all tasks finished after a stop
// request or the stop deadline expired.
func (s *Supervisor) Stopped() context.Context {
	return s.stopped
}

// State returns the current state of the supervisor.
func (s *Supervisor) State() State {
	return s.state.Get()
}

// Go starts fn in a tracked goroutine. The context passed to fn is the
// Stopping context. An error returned by fn is logged and does not affect the
// supervisor or other tasks. Once a stop was requested Go refuses to start
// new tasks and returns ErrStopping or ErrStopped.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) error {
	s.m.Lock()
	defer s.m.Unlock()

	switch s.state.Get() {
	case StateStopRequested:
		return cerrors.Errorf("could not start task %q: %w", name, ErrStopping)
	case StateStopped:
		return cerrors.Errorf("could not start task %q: %w", name, ErrStopped)
	}

	s.t.Go(func() error {
		start := time.Now()
		err := s.run(fn)
		s.logger.Err(s.stopping, err).
			Str(log.TaskField, name).
			Dur(log.DurationField, time.Since(start)).
			Msg("task stopped")
		return nil
	})
	return nil
}

func (s *Supervisor) run(fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cerrors.Errorf("task panicked: %v", r)
		}
	}()
	return fn(s.stopping)
}

// Stop requests all tasks to stop and waits for them to finish. If ctx is
// done before that, the Stopped context is fired anyway and the remaining
// tasks are abandoned. Stop can be called multiple times, only the first
// reason is kept. Reaching the deadline is not reported as an error.
func (s *Supervisor) Stop(ctx context.Context, reason string) error {
	s.requestStop(ctx, reason)

	select {
	case <-s.t.Dead():
	case <-s.stopped.Done():
		// already stopped by an earlier call
	case <-ctx.Done():
		s.logger.Warn(ctx).
			Str(log.ReasonField, reason).
			Msg("stop deadline reached, abandoning running tasks")
	}

	if s.state.CompareAndSet(csync.WatchValues(StateStopRequested), StateStopped) {
		s.logger.Debug(ctx).Str(log.ReasonField, s.reason).Msg("supervisor stopped")
	}
	s.abandon()
	return nil
}

func (s *Supervisor) requestStop(ctx context.Context, reason string) {
	s.m.Lock()
	defer s.m.Unlock()

	if !s.state.CompareAndSet(csync.WatchValues(StateRunning), StateStopRequested) {
		return
	}
	s.reason = reason
	s.logger.Debug(ctx).Str(log.ReasonField, reason).Msg("stop requested")
	s.t.Kill(nil)
}

// Reason returns the reason passed to the first Stop call.
func (s *Supervisor) Reason() string {
	s.m.Lock()
	defer s.m.Unlock()
	return s.reason
}

// Wait blocks until the supervisor is stopped without requesting a stop. It
// returns the context error if ctx is done first.
func (s *Supervisor) Wait(ctx context.Context) error {
	return cchan.Closed(ctx, s.stopped.Done())
}
