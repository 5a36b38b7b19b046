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

// Package natsjs connects the receive transport to NATS JetStream. A topic
// path is the name of a stream and a subscription is a durable pull consumer
// on that stream. Sessions are derived from the last token of the message
// subject and locked through a key-value bucket.
package natsjs

import (
	"context"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const Kind = "nats-jetstream"

const (
	DefaultConnectTimeout = time.Second * 2
	DefaultAckWait        = time.Second * 30
	DefaultPullExpiry     = time.Second * 5
	DefaultLockBucket     = "subscriber-sessions"
	DefaultLockTTL        = time.Minute
	DefaultAcceptTimeout  = time.Second
	DefaultPollInterval   = time.Millisecond * 100

	DefaultSessionIdleTimeout = time.Second * 10
)

// Config of the JetStream connector. Zero values are replaced by defaults.
type Config struct {
	// URL of the NATS server, e.g. nats://localhost:4222.
	URL string
	// Name of the connection reported to the server.
	Name string
	// ConnectTimeout limits dialing the server.
	ConnectTimeout time.Duration
	// AckWait is the time the server waits for a message to be settled
	// before delivering it again.
	AckWait time.Duration
	// PullExpiry is the expiry of a single pull request.
	PullExpiry time.Duration
	// LockBucket is the key-value bucket holding session locks.
	LockBucket string
	// LockTTL expires locks of clients that disappeared without releasing
	// their sessions.
	LockTTL time.Duration
	// AcceptTimeout is how long AcceptSession looks for a free session.
	AcceptTimeout time.Duration
	// PollInterval is the pause between two scans for free sessions.
	PollInterval time.Duration
}

func (c Config) applyDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.AckWait == 0 {
		c.AckWait = DefaultAckWait
	}
	if c.PullExpiry == 0 {
		c.PullExpiry = DefaultPullExpiry
	}
	if c.LockBucket == "" {
		c.LockBucket = DefaultLockBucket
	}
	if c.LockTTL == 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.AcceptTimeout == 0 {
		c.AcceptTimeout = DefaultAcceptTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Connector dials a NATS server with JetStream enabled.
type Connector struct {
	logger log.CtxLogger
	config Config
}

var _ broker.Connector = (*Connector)(nil)

func NewConnector(logger log.CtxLogger, config Config) *Connector {
	return &Connector{
		logger: logger.WithComponent("natsjs.Connector"),
		config: config.applyDefaults(),
	}
}

func (c *Connector) Kind() string { return Kind }

// Connect opens a new NATS connection. Unreachable servers are reported as
// transient errors.
func (c *Connector) Connect(ctx context.Context) (broker.Client, error) {
	opts := []nats.Option{
		nats.Timeout(c.config.ConnectTimeout),
	}
	if c.config.Name != "" {
		opts = append(opts, nats.Name(c.config.Name))
	}
	nc, err := nats.Connect(c.config.URL, opts...)
	if err != nil {
		return nil, cerrors.Errorf("could not connect to %s: %w", c.config.URL, classify(err))
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, cerrors.Errorf("could not create JetStream context: %w", err)
	}

	owner := uuid.NewString()
	c.logger.Debug(ctx).
		Str("server", nc.ConnectedUrlRedacted()).
		Str("owner", owner).
		Msg("connected to NATS")
	return &client{
		logger: c.logger.WithComponent("natsjs.client"),
		config: c.config,
		nc:     nc,
		js:     js,
		owner:  owner,
	}, nil
}

// classify marks errors caused by an unreachable or overloaded server as
// transient.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case cerrors.Is(err, nats.ErrTimeout),
		cerrors.Is(err, nats.ErrNoServers),
		cerrors.Is(err, jetstream.ErrNoHeartbeat):
		return broker.NewTransientError(broker.Timeout, err)
	case cerrors.Is(err, nats.ErrNoResponders),
		cerrors.Is(err, jetstream.ErrNoStreamResponse):
		return broker.NewTransientError(broker.Busy, err)
	default:
		return err
	}
}
