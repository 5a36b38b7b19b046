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
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/ctxutil"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/conduitio/conduit-subscriber/pkg/pipe"
	"github.com/sourcegraph/conc/pool"
)

// receive opens a single receiver and handles up to MaxConcurrentCalls
// messages at the same time. It stops receiving when the transport is
// stopping or the broker closed the receiver and returns after all messages
// in flight were settled. A receiver closed by the broker completes the
// attempt.
func (t *ReceiveTransport) receive(
	ctx context.Context,
	cc *ConnectionContext,
	_ pipe.Next[*ConnectionContext],
) error {
	rcv, err := cc.Client.OpenReceiver(cc.Stopping, cc.Settings.subscription())
	if err != nil {
		return cerrors.Errorf("could not open receiver: %w", err)
	}
	defer func() {
		if err := rcv.Close(context.WithoutCancel(ctx)); err != nil {
			t.logger.Warn(ctx).Err(err).Str(log.ConnectionIDField, cc.ID).Msg("could not close receiver")
		}
	}()

	t.ready(ctx, cc)
	t.logger.Info(ctx).
		Str(log.ConnectionIDField, cc.ID).
		Int("max_concurrent_calls", cc.Settings.MaxConcurrentCalls).
		Int("prefetch_count", cc.Settings.PrefetchCount).
		Msg("receiving messages")

	// Go blocks while all workers are busy, so at most MaxConcurrentCalls
	// messages are received but not yet settled
	p := pool.New().WithMaxGoroutines(cc.Settings.MaxConcurrentCalls)
	for {
		var msg *broker.Message
		msg, err = rcv.Receive(cc.Stopping)
		if err != nil {
			break
		}
		p.Go(func() {
			t.dispatch(ctx, cc, rcv, msg, "")
		})
	}
	p.Wait()

	switch {
	case cc.Stopping.Err() != nil:
		return nil
	case cerrors.Is(err, broker.ErrClosed):
		t.logger.Info(ctx).Str(log.ConnectionIDField, cc.ID).Msg("receiver closed by broker")
		return nil
	}
	return cerrors.Errorf("could not receive message: %w", err)
}

// dispatch passes a message to the handler and settles it. Handler failures
// only affect the message, they are reported to receive observers and the
// message is abandoned.
func (t *ReceiveTransport) dispatch(
	ctx context.Context,
	cc *ConnectionContext,
	rcv broker.Receiver,
	msg *broker.Message,
	sessionID string,
) {
	rc := &ReceiveContext{
		Message:      msg,
		SessionID:    sessionID,
		Address:      cc.Address,
		ConnectionID: cc.ID,
		ReceivedAt:   time.Now(),
	}
	ctx = ctxutil.ContextWithMessageID(ctx, msg.ID)
	if sessionID != "" {
		ctx = ctxutil.ContextWithSessionID(ctx, sessionID)
	}
	t.receiveBus.Publish(ctx, ReceiveEvent{Kind: MessageReceived, Context: rc})

	start := time.Now()
	err := t.handle(ctx, rc)
	elapsed := time.Since(start)
	if err != nil && ctx.Err() != nil {
		// the stop deadline interrupted the handler, this is not a fault of
		// the message
		t.logger.Debug(ctx).Err(err).Msg("handler interrupted by stop, abandoning message")
		if abandonErr := rcv.Abandon(context.WithoutCancel(ctx), msg); abandonErr != nil {
			t.logger.Err(ctx, abandonErr).Msg("could not abandon message")
		}
		t.receiveBus.Publish(ctx, ReceiveEvent{Kind: MessageAbandoned, Context: rc, Duration: elapsed, Err: err})
		return
	}
	if err != nil {
		t.logger.Warn(ctx).
			Err(err).
			Int(log.DeliveryCountField, msg.DeliveryCount).
			Msg("handler failed, abandoning message")
		if abandonErr := rcv.Abandon(ctx, msg); abandonErr != nil {
			t.logger.Err(ctx, abandonErr).Msg("could not abandon message")
		}
		t.receiveBus.Publish(ctx, ReceiveEvent{Kind: MessageFaulted, Context: rc, Duration: elapsed, Err: err})
		return
	}

	if err := rcv.Complete(ctx, msg); err != nil {
		t.logger.Err(ctx, err).Msg("could not complete message")
		t.receiveBus.Publish(ctx, ReceiveEvent{
			Kind:     MessageFaulted,
			Context:  rc,
			Duration: elapsed,
			Err:      cerrors.Errorf("could not complete message: %w", err),
		})
		return
	}
	t.receiveBus.Publish(ctx, ReceiveEvent{Kind: MessageConsumed, Context: rc, Duration: elapsed})
}

func (t *ReceiveTransport) handle(ctx context.Context, rc *ReceiveContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cerrors.Errorf("handler panicked: %v", r)
		}
	}()
	return t.handler.Handle(ctx, rc)
}
