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

// Package memory contains an in-process broker. It keeps all messages in
// memory and supports plain and session-enabled subscriptions as well as
// injecting failures into any operation.
package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/gammazero/deque"
	"github.com/google/uuid"
)

const Kind = "memory"

// Op identifies a broker operation for failure injection.
type Op string

const (
	OpConnect      Op = "connect"
	OpProvision    Op = "provision"
	OpOpenReceiver Op = "open-receiver"
	OpAccept       Op = "accept-session"
	OpReceive      Op = "receive"
	OpComplete     Op = "complete"
	OpAbandon      Op = "abandon"
)

const defaultAcceptTimeout = time.Second

type Option func(*Broker)

// WithoutSessions makes the broker reject session receivers with
// broker.ErrSessionsNotSupported.
func WithoutSessions() Option {
	return func(b *Broker) {
		b.sessionsDisabled = true
	}
}

// WithAcceptTimeout sets how long AcceptSession waits for a free session
// before it returns broker.ErrNoSessionAvailable.
func WithAcceptTimeout(d time.Duration) Option {
	return func(b *Broker) {
		b.acceptTimeout = d
	}
}

// Broker is an in-memory broker. It implements broker.Connector, every call
// to Connect returns a new client sharing the same state.
type Broker struct {
	sessionsDisabled bool
	acceptTimeout    time.Duration

	m        sync.Mutex
	topics   map[string]map[string]*subscription
	failures map[Op]*deque.Deque[error]
	// changed is closed and replaced whenever messages or locks change
	changed chan struct{}

	connects atomic.Int64
}

var _ broker.Connector = (*Broker)(nil)

// New creates an empty broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		acceptTimeout: defaultAcceptTimeout,
		topics:        make(map[string]map[string]*subscription),
		failures:      make(map[Op]*deque.Deque[error]),
		changed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broker) Kind() string { return Kind }

// Connect opens a new client.
func (b *Broker) Connect(context.Context) (broker.Client, error) {
	b.connects.Add(1)
	if err := b.takeFailure(OpConnect); err != nil {
		return nil, err
	}
	return &client{b: b}, nil
}

// Connects returns how many times Connect was called.
func (b *Broker) Connects() int {
	return int(b.connects.Load())
}

// FailNext makes the next len(errs) calls of op fail with errs, in order.
func (b *Broker) FailNext(op Op, errs ...error) {
	b.m.Lock()
	defer b.m.Unlock()

	q, ok := b.failures[op]
	if !ok {
		q = &deque.Deque[error]{}
		b.failures[op] = q
	}
	for _, err := range errs {
		q.PushBack(err)
	}
}

func (b *Broker) takeFailure(op Op) error {
	b.m.Lock()
	defer b.m.Unlock()
	return b.takeFailureLocked(op)
}

func (b *Broker) takeFailureLocked(op Op) error {
	q, ok := b.failures[op]
	if !ok || q.Len() == 0 {
		return nil
	}
	return q.PopFront()
}

// CreateSubscription creates a subscription ahead of time, so messages
// published before the transport connects are not lost.
func (b *Broker) CreateSubscription(topicPath, name string, requiresSession bool) {
	b.m.Lock()
	defer b.m.Unlock()
	b.createSubscriptionLocked(topicPath, name, requiresSession)
}

func (b *Broker) createSubscriptionLocked(topicPath, name string, requiresSession bool) (*subscription, bool) {
	subs, ok := b.topics[topicPath]
	if !ok {
		subs = make(map[string]*subscription)
		b.topics[topicPath] = subs
	}
	if sub, ok := subs[name]; ok {
		return sub, false
	}
	sub := newSubscription(requiresSession)
	subs[name] = sub
	return sub, true
}

// Publish delivers copies of msgs to every subscription of the topic.
// Messages without an ID get a random one.
func (b *Broker) Publish(topicPath string, msgs ...broker.Message) {
	b.m.Lock()
	defer b.m.Unlock()

	now := time.Now()
	for _, msg := range msgs {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.EnqueuedAt.IsZero() {
			msg.EnqueuedAt = now
		}
		for _, sub := range b.topics[topicPath] {
			sub.enqueue(&entry{msg: msg})
		}
	}
	b.broadcastLocked()
}

// Stats returns counters of a subscription.
func (b *Broker) Stats(topicPath, name string) Stats {
	b.m.Lock()
	defer b.m.Unlock()

	sub, ok := b.topics[topicPath][name]
	if !ok {
		return Stats{}
	}
	return sub.stats()
}

func (b *Broker) subscription(topicPath, name string) (*subscription, error) {
	sub, ok := b.topics[topicPath][name]
	if !ok {
		return nil, cerrors.Errorf("subscription %s/%s: %w", topicPath, name, broker.ErrNotFound)
	}
	return sub, nil
}

func (b *Broker) broadcastLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}

// wait blocks until the broker state changes, ctx is done or timeout (if
// positive) expires. It must be called with the lock held and returns with
// the lock held. It reports false if it stopped waiting because of timeout.
func (b *Broker) waitLocked(ctx context.Context, deadline time.Time) (bool, error) {
	changed := b.changed
	b.m.Unlock()
	defer b.m.Lock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-changed:
		return true, nil
	case <-timeout:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Stats are counters of a single subscription.
type Stats struct {
	// Pending is the number of messages waiting to be delivered.
	Pending int
	// InFlight is the number of delivered messages that are not settled.
	InFlight int
	// Completed is the number of completed messages.
	Completed int
	// Abandoned is the number of abandoned messages.
	Abandoned int
	// LockedSessions is the number of sessions currently held by a receiver.
	LockedSessions int
}

type entry struct {
	msg           broker.Message
	deliveryCount int
}

type session struct {
	id     string
	queue  deque.Deque[*entry]
	locked bool
}

type subscription struct {
	requiresSession bool

	queue    deque.Deque[*entry]
	sessions map[string]*session
	// order keeps session IDs in the order they were first seen
	order []string

	inFlight  map[string]*entry
	completed int
	abandoned int
}

func newSubscription(requiresSession bool) *subscription {
	return &subscription{
		requiresSession: requiresSession,
		sessions:        make(map[string]*session),
		inFlight:        make(map[string]*entry),
	}
}

func (s *subscription) enqueue(e *entry) {
	if !s.requiresSession {
		s.queue.PushBack(e)
		return
	}
	s.session(e.msg.SessionID).queue.PushBack(e)
}

func (s *subscription) session(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{id: id}
		s.sessions[id] = sess
		s.order = append(s.order, id)
	}
	return sess
}

// lockNextSession locks the first unlocked session with pending messages.
func (s *subscription) lockNextSession() (*session, bool) {
	for _, id := range s.order {
		sess := s.sessions[id]
		if !sess.locked && sess.queue.Len() > 0 {
			sess.locked = true
			return sess, true
		}
	}
	return nil, false
}

func (s *subscription) deliver(e *entry) *broker.Message {
	e.deliveryCount++
	token := uuid.NewString()
	s.inFlight[token] = e
	msg := e.msg
	msg.DeliveryCount = e.deliveryCount
	msg.Token = token
	if msg.Headers != nil {
		msg.Headers = cloneHeaders(msg.Headers)
	}
	return &msg
}

func (s *subscription) settle(msg *broker.Message) (*entry, error) {
	token, _ := msg.Token.(string)
	e, ok := s.inFlight[token]
	if !ok {
		return nil, cerrors.Errorf("message %s: %w", msg.ID, broker.ErrNotFound)
	}
	delete(s.inFlight, token)
	return e, nil
}

func (s *subscription) requeue(e *entry) {
	if !s.requiresSession {
		s.queue.PushFront(e)
		return
	}
	s.session(e.msg.SessionID).queue.PushFront(e)
}

func (s *subscription) stats() Stats {
	st := Stats{
		Pending:   s.queue.Len(),
		InFlight:  len(s.inFlight),
		Completed: s.completed,
		Abandoned: s.abandoned,
	}
	for _, sess := range s.sessions {
		st.Pending += sess.queue.Len()
		if sess.locked {
			st.LockedSessions++
		}
	}
	return st
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// sortedTokens returns tokens in a stable order, so requeued messages keep
// their relative order.
func sortedTokens(tokens map[string]int) []string {
	out := make([]string, 0, len(tokens))
	for t := range tokens {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b string) int {
		return tokens[b] - tokens[a]
	})
	return out
}
