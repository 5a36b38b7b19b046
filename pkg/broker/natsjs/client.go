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
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/conduitio/conduit-commons/rollback"
	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/conduitio/conduit-subscriber/pkg/retry"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

var errSessionLocked = cerrors.New("session locked by another receiver")

type client struct {
	logger log.CtxLogger
	config Config
	nc     *nats.Conn
	js     jetstream.JetStream
	// owner is stored in session locks held by this client
	owner string

	m     sync.Mutex
	locks jetstream.KeyValue
}

var _ broker.Client = (*client)(nil)

func (c *client) stream(ctx context.Context, name string) (jetstream.Stream, error) {
	s, err := c.js.Stream(ctx, name)
	switch {
	case cerrors.Is(err, jetstream.ErrStreamNotFound):
		return nil, cerrors.Errorf("stream %s: %w", name, broker.ErrNotFound)
	case err != nil:
		return nil, cerrors.Errorf("could not get stream %s: %w", name, classify(err))
	}
	return s, nil
}

// ProvisionSubscription creates the durable consumer of a subscription. For
// subscriptions with sessions it only makes sure the stream and the lock
// bucket exist, session consumers are created when a session is accepted.
func (c *client) ProvisionSubscription(ctx context.Context, sub broker.Subscription) error {
	stream, err := c.stream(ctx, sub.TopicPath)
	if err != nil {
		return err
	}
	if sub.RequiresSession {
		_, err := c.lockBucket(ctx)
		return err
	}

	name := consumerName(sub.Name)
	_, err = stream.Consumer(ctx, name)
	switch {
	case err == nil:
		return cerrors.Errorf("consumer %s: %w", name, broker.ErrAlreadyExists)
	case !cerrors.Is(err, jetstream.ErrConsumerNotFound):
		return cerrors.Errorf("could not get consumer %s: %w", name, classify(err))
	}

	_, err = stream.CreateConsumer(ctx, c.consumerConfig(name, "", sub.PrefetchCount))
	switch {
	case cerrors.Is(err, jetstream.ErrConsumerExists),
		cerrors.Is(err, jetstream.ErrConsumerNameAlreadyInUse):
		// created concurrently by another client
		return cerrors.Errorf("consumer %s: %w", name, broker.ErrAlreadyExists)
	case err != nil:
		return cerrors.Errorf("could not create consumer %s: %w", name, classify(err))
	}
	c.logger.Info(ctx).
		Str(log.TopicField, sub.TopicPath).
		Str(log.SubscriptionField, sub.Name).
		Msg("durable consumer created")
	return nil
}

func (c *client) consumerConfig(name, filterSubject string, maxAckPending int) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Name:          name,
		Durable:       name,
		FilterSubject: filterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.config.AckWait,
		MaxAckPending: maxAckPending,
	}
}

func (c *client) OpenReceiver(ctx context.Context, sub broker.Subscription) (broker.Receiver, error) {
	if sub.RequiresSession {
		return nil, cerrors.FatalError(cerrors.Errorf("subscription %s requires sessions", sub.Name))
	}
	stream, err := c.stream(ctx, sub.TopicPath)
	if err != nil {
		return nil, err
	}
	name := consumerName(sub.Name)
	cons, err := stream.Consumer(ctx, name)
	switch {
	case cerrors.Is(err, jetstream.ErrConsumerNotFound):
		return nil, cerrors.Errorf("consumer %s: %w", name, broker.ErrNotFound)
	case err != nil:
		return nil, cerrors.Errorf("could not get consumer %s: %w", name, classify(err))
	}
	return c.newReceiver(cons, sub.PrefetchCount)
}

// AcceptSession scans the subjects of the stream for a session with pending
// messages that is not locked by another receiver.
func (c *client) AcceptSession(ctx context.Context, sub broker.Subscription) (broker.SessionReceiver, error) {
	locks, err := c.lockBucket(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := c.stream(ctx, sub.TopicPath)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.config.AcceptTimeout)
	for {
		sr, err := c.tryAcceptSession(ctx, locks, stream, sub)
		switch {
		case err != nil:
			return nil, err
		case sr != nil:
			return sr, nil
		case time.Now().After(deadline):
			return nil, broker.ErrNoSessionAvailable
		}
		if err := retry.Sleep(ctx, c.config.PollInterval); err != nil {
			return nil, err
		}
	}
}

func (c *client) tryAcceptSession(
	ctx context.Context,
	locks jetstream.KeyValue,
	stream jetstream.Stream,
	sub broker.Subscription,
) (*sessionReceiver, error) {
	info, err := stream.Info(ctx, jetstream.WithSubjectFilter(">"))
	if err != nil {
		return nil, cerrors.Errorf("could not list subjects of stream %s: %w", sub.TopicPath, classify(err))
	}
	subjects := make([]string, 0, len(info.State.Subjects))
	for subject := range info.State.Subjects {
		subjects = append(subjects, subject)
	}
	slices.Sort(subjects)

	for _, subject := range subjects {
		sr, err := c.lockSession(ctx, locks, stream, sub, subject)
		switch {
		case cerrors.Is(err, errSessionLocked):
			continue
		case err != nil:
			return nil, err
		case sr != nil:
			return sr, nil
		}
	}
	return nil, nil
}

// lockSession locks the session of subject and opens a receiver on it. It
// returns nil if the session has nothing to deliver, in that case the lock is
// released again.
func (c *client) lockSession(
	ctx context.Context,
	locks jetstream.KeyValue,
	stream jetstream.Stream,
	sub broker.Subscription,
	subject string,
) (_ *sessionReceiver, err error) {
	var r rollback.R
	defer func() {
		if rerr := r.Execute(); rerr != nil {
			c.logger.Err(ctx, rerr).Str(log.SubjectField, subject).Msg("could not roll back session lock")
		}
	}()

	sessionID := sessionIDOf(subject)
	key := lockKey(sub.TopicPath, sub.Name, sessionID)
	rev, err := locks.Create(ctx, key, []byte(c.owner))
	switch {
	case cerrors.Is(err, jetstream.ErrKeyExists):
		return nil, errSessionLocked
	case err != nil:
		return nil, cerrors.Errorf("could not lock session %s: %w", sessionID, classify(err))
	}
	unlock := func() error {
		return locks.Delete(context.Background(), key, jetstream.LastRevision(rev))
	}
	r.Append(unlock)

	name := consumerName(sub.Name + "_" + sessionID)
	// one unsettled message at a time keeps redeliveries in order
	cons, err := stream.CreateOrUpdateConsumer(ctx, c.consumerConfig(name, subject, 1))
	if err != nil {
		return nil, cerrors.Errorf("could not create session consumer %s: %w", name, classify(err))
	}
	info, err := cons.Info(ctx)
	if err != nil {
		return nil, cerrors.Errorf("could not get session consumer %s: %w", name, classify(err))
	}
	if info.NumPending == 0 && info.NumAckPending == 0 {
		return nil, nil
	}

	rcv, err := c.newReceiver(cons, 1)
	if err != nil {
		return nil, err
	}
	idle := sub.SessionIdleTimeout
	if idle <= 0 {
		idle = DefaultSessionIdleTimeout
	}
	r.Skip()
	return &sessionReceiver{
		receiver:  rcv,
		sessionID: sessionID,
		idle:      idle,
		unlock:    unlock,
	}, nil
}

func (c *client) lockBucket(ctx context.Context) (jetstream.KeyValue, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.locks != nil {
		return c.locks, nil
	}
	kv, err := c.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: c.config.LockBucket,
		TTL:    c.config.LockTTL,
	})
	if err != nil {
		return nil, cerrors.Errorf("could not open lock bucket %s: %w", c.config.LockBucket, classify(err))
	}
	c.locks = kv
	return kv, nil
}

func (c *client) Close(context.Context) error {
	c.nc.Close()
	return nil
}

// consumerName replaces characters that are not allowed in consumer names.
func consumerName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '.', r == '*', r == '>', r == '/', r == '\\', r <= ' ', r == 127:
			return '_'
		default:
			return r
		}
	}, name)
}

// sessionIDOf returns the last token of a subject.
func sessionIDOf(subject string) string {
	return subject[strings.LastIndexByte(subject, '.')+1:]
}

func lockKey(topicPath, subscription, sessionID string) string {
	return consumerName(topicPath) + "." + consumerName(subscription) + "." + consumerName(sessionID)
}
