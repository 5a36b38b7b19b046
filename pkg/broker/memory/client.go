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

package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
)

type client struct {
	b      *Broker
	closed atomic.Bool
}

var _ broker.Client = (*client)(nil)

func (c *client) check(op Op) error {
	if c.closed.Load() {
		return broker.ErrClosed
	}
	return c.b.takeFailure(op)
}

func (c *client) ProvisionSubscription(_ context.Context, sub broker.Subscription) error {
	if err := c.check(OpProvision); err != nil {
		return err
	}

	c.b.m.Lock()
	defer c.b.m.Unlock()

	if _, created := c.b.createSubscriptionLocked(sub.TopicPath, sub.Name, sub.RequiresSession); !created {
		return broker.ErrAlreadyExists
	}
	return nil
}

func (c *client) OpenReceiver(_ context.Context, sub broker.Subscription) (broker.Receiver, error) {
	if err := c.check(OpOpenReceiver); err != nil {
		return nil, err
	}

	c.b.m.Lock()
	defer c.b.m.Unlock()

	s, err := c.b.subscription(sub.TopicPath, sub.Name)
	if err != nil {
		return nil, err
	}
	if s.requiresSession {
		return nil, cerrors.FatalError(cerrors.Errorf("subscription %s/%s requires sessions", sub.TopicPath, sub.Name))
	}
	return &receiver{c: c, sub: s, tokens: make(map[string]int)}, nil
}

func (c *client) AcceptSession(ctx context.Context, sub broker.Subscription) (broker.SessionReceiver, error) {
	if c.b.sessionsDisabled {
		return nil, broker.ErrSessionsNotSupported
	}
	if err := c.check(OpAccept); err != nil {
		return nil, err
	}

	c.b.m.Lock()
	defer c.b.m.Unlock()

	s, err := c.b.subscription(sub.TopicPath, sub.Name)
	if err != nil {
		return nil, err
	}
	if !s.requiresSession {
		return nil, cerrors.FatalError(cerrors.Errorf("subscription %s/%s does not support sessions", sub.TopicPath, sub.Name))
	}

	deadline := time.Now().Add(c.b.acceptTimeout)
	for {
		if c.closed.Load() {
			return nil, broker.ErrClosed
		}
		if sess, ok := s.lockNextSession(); ok {
			idle := sub.SessionIdleTimeout
			if idle <= 0 {
				idle = time.Second
			}
			return &sessionReceiver{
				receiver: receiver{c: c, sub: s, tokens: make(map[string]int)},
				sess:     sess,
				idle:     idle,
			}, nil
		}
		woken, err := c.b.waitLocked(ctx, deadline)
		if err != nil {
			return nil, err
		}
		if !woken {
			return nil, broker.ErrNoSessionAvailable
		}
	}
}

func (c *client) Close(context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.b.m.Lock()
	defer c.b.m.Unlock()
	// wake up everybody waiting on this client
	c.b.broadcastLocked()
	return nil
}

type receiver struct {
	c   *client
	sub *subscription

	// tokens of messages delivered by this receiver and not settled yet,
	// mapped to their delivery sequence; guarded by the broker lock
	tokens map[string]int
	seq    int
	closed bool
}

var _ broker.Receiver = (*receiver)(nil)

func (r *receiver) Receive(ctx context.Context) (*broker.Message, error) {
	if err := r.c.check(OpReceive); err != nil {
		return nil, err
	}

	b := r.c.b
	b.m.Lock()
	defer b.m.Unlock()

	for {
		if r.closed || r.c.closed.Load() {
			return nil, broker.ErrClosed
		}
		if r.sub.queue.Len() > 0 {
			return r.deliverLocked(r.sub.queue.PopFront()), nil
		}
		if _, err := b.waitLocked(ctx, time.Time{}); err != nil {
			return nil, err
		}
	}
}

func (r *receiver) deliverLocked(e *entry) *broker.Message {
	msg := r.sub.deliver(e)
	r.seq++
	r.tokens[msg.Token.(string)] = r.seq
	return msg
}

func (r *receiver) Complete(_ context.Context, msg *broker.Message) error {
	if err := r.c.check(OpComplete); err != nil {
		return err
	}

	b := r.c.b
	b.m.Lock()
	defer b.m.Unlock()

	if _, err := r.sub.settle(msg); err != nil {
		return err
	}
	delete(r.tokens, msg.Token.(string))
	r.sub.completed++
	return nil
}

func (r *receiver) Abandon(_ context.Context, msg *broker.Message) error {
	if err := r.c.check(OpAbandon); err != nil {
		return err
	}

	b := r.c.b
	b.m.Lock()
	defer b.m.Unlock()

	e, err := r.sub.settle(msg)
	if err != nil {
		return err
	}
	delete(r.tokens, msg.Token.(string))
	r.sub.abandoned++
	r.sub.requeue(e)
	b.broadcastLocked()
	return nil
}

func (r *receiver) Close(context.Context) error {
	b := r.c.b
	b.m.Lock()
	defer b.m.Unlock()

	r.closeLocked()
	b.broadcastLocked()
	return nil
}

// closeLocked returns all unsettled messages to the subscription.
func (r *receiver) closeLocked() {
	if r.closed {
		return
	}
	r.closed = true
	for _, token := range sortedTokens(r.tokens) {
		if e, ok := r.sub.inFlight[token]; ok {
			delete(r.sub.inFlight, token)
			r.sub.requeue(e)
		}
	}
	clear(r.tokens)
}

type sessionReceiver struct {
	receiver
	sess *session
	idle time.Duration
}

var _ broker.SessionReceiver = (*sessionReceiver)(nil)

func (r *sessionReceiver) SessionID() string {
	return r.sess.id
}

func (r *sessionReceiver) Receive(ctx context.Context) (*broker.Message, error) {
	if err := r.c.check(OpReceive); err != nil {
		return nil, err
	}

	b := r.c.b
	b.m.Lock()
	defer b.m.Unlock()

	deadline := time.Now().Add(r.idle)
	for {
		if r.closed || r.c.closed.Load() {
			return nil, broker.ErrClosed
		}
		if r.sess.queue.Len() > 0 {
			return r.deliverLocked(r.sess.queue.PopFront()), nil
		}
		woken, err := b.waitLocked(ctx, deadline)
		if err != nil {
			return nil, err
		}
		if !woken {
			return nil, broker.ErrSessionIdle
		}
	}
}

func (r *sessionReceiver) Close(context.Context) error {
	b := r.c.b
	b.m.Lock()
	defer b.m.Unlock()

	if r.closed {
		return nil
	}
	r.closeLocked()
	r.sess.locked = false
	b.broadcastLocked()
	return nil
}
