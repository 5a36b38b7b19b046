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

package redisstream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/gammazero/deque"
	"github.com/redis/go-redis/v9"
)

type client struct {
	logger log.CtxLogger
	config Config
	rc     redisClient
}

var _ broker.Client = (*client)(nil)

// ProvisionSubscription creates the consumer group, and the stream if it does
// not exist yet. New groups start at the beginning of the stream.
func (c *client) ProvisionSubscription(ctx context.Context, sub broker.Subscription) error {
	if sub.RequiresSession {
		return broker.ErrSessionsNotSupported
	}
	err := c.rc.XGroupCreateMkStream(ctx, sub.TopicPath, sub.Name, "0").Err()
	switch {
	case err == nil:
		c.logger.Info(ctx).
			Str(log.TopicField, sub.TopicPath).
			Str(log.SubscriptionField, sub.Name).
			Msg("consumer group created")
		return nil
	case strings.HasPrefix(err.Error(), "BUSYGROUP"):
		return cerrors.Errorf("consumer group %s: %w", sub.Name, broker.ErrAlreadyExists)
	default:
		return cerrors.Errorf("could not create consumer group %s: %w", sub.Name, classify(err))
	}
}

func (c *client) OpenReceiver(_ context.Context, sub broker.Subscription) (broker.Receiver, error) {
	if sub.RequiresSession {
		return nil, broker.ErrSessionsNotSupported
	}
	return &receiver{
		c:        c,
		stream:   sub.TopicPath,
		group:    sub.Name,
		count:    int64(max(sub.PrefetchCount, 1)),
		history:  "0",
		inFlight: make(map[string]struct{}),
	}, nil
}

func (c *client) AcceptSession(context.Context, broker.Subscription) (broker.SessionReceiver, error) {
	return nil, broker.ErrSessionsNotSupported
}

func (c *client) Close(context.Context) error {
	if err := c.rc.Close(); err != nil {
		return cerrors.Errorf("could not close redis client: %w", err)
	}
	return nil
}

// receiver reads entries of a consumer group. It first reads the entries left
// pending by earlier receivers with the same consumer name, then new entries.
// Abandoned entries stay pending in the group and are redelivered by this
// receiver right away.
type receiver struct {
	c      *client
	stream string
	group  string
	count  int64

	// history is the ID after which pending entries are read, it is empty
	// once all of them were read
	history string
	// buffered entries are returned before reading again
	buffered deque.Deque[*broker.Message]

	m         sync.Mutex
	redeliver deque.Deque[*broker.Message]
	inFlight  map[string]struct{}
	closed    bool
}

var _ broker.Receiver = (*receiver)(nil)

// Receive is not safe for concurrent use, settling messages is.
func (r *receiver) Receive(ctx context.Context) (*broker.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, ok, err := r.next()
		switch {
		case err != nil:
			return nil, err
		case ok:
			return msg, nil
		}
		if err := r.read(ctx); err != nil {
			return nil, err
		}
	}
}

func (r *receiver) next() (*broker.Message, bool, error) {
	r.m.Lock()
	defer r.m.Unlock()

	var msg *broker.Message
	switch {
	case r.closed:
		return nil, false, broker.ErrClosed
	case r.redeliver.Len() > 0:
		msg = r.redeliver.PopFront()
		msg.DeliveryCount++
	case r.buffered.Len() > 0:
		msg = r.buffered.PopFront()
	default:
		return nil, false, nil
	}
	r.inFlight[msg.ID] = struct{}{}
	return msg, true, nil
}

func (r *receiver) read(ctx context.Context) error {
	start := ">"
	block := r.c.config.BlockTimeout
	deliveryCount := 1
	if r.history != "" {
		// pending entries were delivered at least once before
		start, block, deliveryCount = r.history, -1, 2
	}
	res, err := r.c.rc.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.c.config.ConsumerName,
		Streams:  []string{r.stream, start},
		Count:    r.count,
		Block:    block,
	}).Result()
	switch {
	case cerrors.Is(err, redis.Nil):
		return nil
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return cerrors.Errorf("could not read from stream %s: %w", r.stream, classify(err))
	}

	var n int
	for _, s := range res {
		for _, entry := range s.Messages {
			r.buffered.PushBack(r.toMessage(s.Stream, entry, deliveryCount))
			n++
			if r.history != "" {
				r.history = entry.ID
			}
		}
	}
	if r.history != "" && n == 0 {
		r.history = ""
	}
	return nil
}

func (r *receiver) toMessage(stream string, entry redis.XMessage, deliveryCount int) *broker.Message {
	msg := &broker.Message{
		ID:            entry.ID,
		Subject:       stream,
		DeliveryCount: deliveryCount,
		EnqueuedAt:    entryTime(entry.ID),
	}
	for k, v := range entry.Values {
		if k == r.c.config.BodyField {
			msg.Body = []byte(fmt.Sprint(v))
			continue
		}
		if msg.Headers == nil {
			msg.Headers = make(map[string]string, len(entry.Values))
		}
		msg.Headers[k] = fmt.Sprint(v)
	}
	return msg
}

func (r *receiver) settle(msg *broker.Message) error {
	r.m.Lock()
	defer r.m.Unlock()
	if _, ok := r.inFlight[msg.ID]; !ok {
		return cerrors.Errorf("message %s: %w", msg.ID, broker.ErrNotFound)
	}
	delete(r.inFlight, msg.ID)
	return nil
}

func (r *receiver) Complete(ctx context.Context, msg *broker.Message) error {
	if err := r.settle(msg); err != nil {
		return err
	}
	if err := r.c.rc.XAck(ctx, r.stream, r.group, msg.ID).Err(); err != nil {
		return cerrors.Errorf("could not ack entry %s: %w", msg.ID, classify(err))
	}
	return nil
}

// Abandon keeps the entry pending in the group and queues it for the next
// Receive call.
func (r *receiver) Abandon(_ context.Context, msg *broker.Message) error {
	if err := r.settle(msg); err != nil {
		return err
	}
	r.m.Lock()
	defer r.m.Unlock()
	r.redeliver.PushBack(msg)
	return nil
}

func (r *receiver) Close(context.Context) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.closed = true
	return nil
}

// entryTime extracts the millisecond timestamp of a stream entry ID.
func entryTime(id string) time.Time {
	ms, _, _ := strings.Cut(id, "-")
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(n)
}
