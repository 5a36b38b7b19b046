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

package natsjs

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// receiver pulls messages from a consumer. Messages that are not settled when
// the receiver is closed are delivered again after the ack wait.
type receiver struct {
	iter      jetstream.MessagesContext
	closeOnce sync.Once
	// interrupted is set once a done receive context stopped the iterator
	interrupted atomic.Bool
}

var _ broker.Receiver = (*receiver)(nil)

func (c *client) newReceiver(cons jetstream.Consumer, prefetch int) (*receiver, error) {
	iter, err := cons.Messages(
		jetstream.PullMaxMessages(max(prefetch, 1)),
		jetstream.PullExpiry(c.config.PullExpiry),
	)
	if err != nil {
		return nil, cerrors.Errorf("could not start pulling messages: %w", classify(err))
	}
	return &receiver{iter: iter}, nil
}

// Receive waits for the next message. The iterator does not take a context,
// it is stopped when ctx is done, which also ends the receiver.
func (r *receiver) Receive(ctx context.Context) (*broker.Message, error) {
	stop := context.AfterFunc(ctx, r.interrupt)
	defer stop()

	msg, err := r.iter.Next()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if cerrors.Is(err, jetstream.ErrMsgIteratorClosed) {
			return nil, broker.ErrClosed
		}
		return nil, cerrors.Errorf("could not receive message: %w", classify(err))
	}
	return toMessage(msg)
}

// interrupt stops the iterator on behalf of a receive context. The context can
// fire after Next already returned a message, the stop then only shows up in
// the following Receive.
func (r *receiver) interrupt() {
	r.interrupted.Store(true)
	r.iter.Stop()
}

func (r *receiver) Complete(_ context.Context, msg *broker.Message) error {
	m, err := natsMsg(msg)
	if err != nil {
		return err
	}
	if err := m.Ack(); err != nil {
		return cerrors.Errorf("could not ack message %s: %w", msg.ID, classify(err))
	}
	return nil
}

func (r *receiver) Abandon(_ context.Context, msg *broker.Message) error {
	m, err := natsMsg(msg)
	if err != nil {
		return err
	}
	if err := m.Nak(); err != nil {
		return cerrors.Errorf("could not nak message %s: %w", msg.ID, classify(err))
	}
	return nil
}

func (r *receiver) Close(context.Context) error {
	r.closeOnce.Do(r.iter.Stop)
	return nil
}

// sessionReceiver receives the messages of a single locked session.
type sessionReceiver struct {
	*receiver
	sessionID string
	idle      time.Duration
	unlock    func() error
}

var _ broker.SessionReceiver = (*sessionReceiver)(nil)

func (r *sessionReceiver) SessionID() string {
	return r.sessionID
}

// Receive returns broker.ErrSessionIdle if no message arrives within the idle
// timeout. An idle timer that stopped the iterator after the previous message
// was returned is reported as idle as well.
func (r *sessionReceiver) Receive(ctx context.Context) (*broker.Message, error) {
	idleCtx, cancel := context.WithTimeout(ctx, r.idle)
	defer cancel()

	msg, err := r.receiver.Receive(idleCtx)
	if err != nil && ctx.Err() == nil {
		if idleCtx.Err() != nil || (cerrors.Is(err, broker.ErrClosed) && r.interrupted.Load()) {
			return nil, broker.ErrSessionIdle
		}
	}
	if msg != nil {
		msg.SessionID = r.sessionID
	}
	return msg, err
}

// Close stops receiving and releases the session lock.
func (r *sessionReceiver) Close(ctx context.Context) error {
	_ = r.receiver.Close(ctx)
	if err := r.unlock(); err != nil {
		return cerrors.Errorf("could not release session %s: %w", r.sessionID, err)
	}
	return nil
}

func toMessage(m jetstream.Msg) (*broker.Message, error) {
	meta, err := m.Metadata()
	if err != nil {
		return nil, cerrors.Errorf("could not read message metadata: %w", err)
	}
	id := m.Headers().Get(nats.MsgIdHdr)
	if id == "" {
		id = strconv.FormatUint(meta.Sequence.Stream, 10)
	}
	var headers map[string]string
	if h := m.Headers(); len(h) > 0 {
		headers = make(map[string]string, len(h))
		for k := range h {
			headers[k] = h.Get(k)
		}
	}
	return &broker.Message{
		ID:            id,
		Subject:       m.Subject(),
		Body:          m.Data(),
		Headers:       headers,
		DeliveryCount: int(meta.NumDelivered),
		EnqueuedAt:    meta.Timestamp,
		Token:         m,
	}, nil
}

func natsMsg(msg *broker.Message) (jetstream.Msg, error) {
	m, ok := msg.Token.(jetstream.Msg)
	if !ok {
		return nil, cerrors.Errorf("message %s: %w", msg.ID, broker.ErrNotFound)
	}
	return m, nil
}
