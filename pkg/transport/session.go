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

package transport

import (
	"context"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/conduitio/conduit-subscriber/pkg/pipe"
	"golang.org/x/sync/errgroup"
)

// receiveSessions runs MaxConcurrentSessions workers, each locking one session
// at a time and handling its messages in order. A worker failing to accept or
// receive stops all other workers and faults the connection.
func (t *ReceiveTransport) receiveSessions(
	ctx context.Context,
	cc *ConnectionContext,
	_ pipe.Next[*ConnectionContext],
) error {
	g, gctx := errgroup.WithContext(cc.Stopping)
	for worker := range cc.Settings.MaxConcurrentSessions {
		g.Go(func() error {
			return t.sessionWorker(ctx, gctx, cc, worker)
		})
	}

	t.ready(ctx, cc)
	t.logger.Info(ctx).
		Str(log.ConnectionIDField, cc.ID).
		Int("max_concurrent_sessions", cc.Settings.MaxConcurrentSessions).
		Msg("receiving sessions")

	err := g.Wait()
	if cc.Stopping.Err() != nil {
		return nil
	}
	return err
}

// sessionWorker accepts sessions until acceptCtx is done. Handlers and message
// settlement use ctx, so a stop request does not interrupt them.
func (t *ReceiveTransport) sessionWorker(
	ctx context.Context,
	acceptCtx context.Context,
	cc *ConnectionContext,
	worker int,
) error {
	for acceptCtx.Err() == nil {
		sr, err := cc.Client.AcceptSession(acceptCtx, cc.Settings.subscription())
		switch {
		case err == nil:
		case cerrors.Is(err, broker.ErrNoSessionAvailable):
			continue
		case acceptCtx.Err() != nil:
			return nil
		default:
			return cerrors.Errorf("worker %d could not accept session: %w", worker, err)
		}

		if err := t.processSession(ctx, acceptCtx, cc, sr, worker); err != nil {
			return err
		}
	}
	return nil
}

// processSession handles messages of a locked session one by one until the
// session is idle or closed by the broker, then releases the lock.
func (t *ReceiveTransport) processSession(
	ctx context.Context,
	acceptCtx context.Context,
	cc *ConnectionContext,
	sr broker.SessionReceiver,
	worker int,
) error {
	t.logger.Debug(ctx).
		Str(log.ConnectionIDField, cc.ID).
		Str(log.SessionIDField, sr.SessionID()).
		Int(log.WorkerIDField, worker).
		Msg("session accepted")

	defer func() {
		if err := sr.Close(context.WithoutCancel(ctx)); err != nil {
			t.logger.Warn(ctx).Err(err).Str(log.SessionIDField, sr.SessionID()).Msg("could not release session")
		}
	}()

	for {
		msg, err := sr.Receive(acceptCtx)
		switch {
		case err == nil:
		case cerrors.Is(err, broker.ErrSessionIdle):
			t.logger.Debug(ctx).Str(log.SessionIDField, sr.SessionID()).Msg("session idle, releasing")
			return nil
		case cerrors.Is(err, broker.ErrClosed):
			t.logger.Debug(ctx).Str(log.SessionIDField, sr.SessionID()).Msg("session closed by broker, releasing")
			return nil
		case acceptCtx.Err() != nil:
			return nil
		default:
			return cerrors.Errorf("could not receive message from session %q: %w", sr.SessionID(), err)
		}
		t.dispatch(ctx, cc, sr, msg, sr.SessionID())
	}
}
