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

// Package redisstream connects the receive transport to Redis Streams. A
// topic path is the key of a stream and a subscription is a consumer group on
// that stream. Redis streams have no sessions, subscriptions requiring them are
// rejected.
package redisstream

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const Kind = "redis-streams"

const (
	DefaultBlockTimeout = time.Second
	DefaultBodyField    = "body"
)

// redisClient is the subset of go-redis commands the adapter uses.
type redisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	Close() error
}

// Config of the Redis Streams connector.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
	// ConsumerName identifies this receiver within the consumer group.
	// Messages left pending by a consumer are redelivered to the next
	// receiver using the same name. Defaults to a random name.
	ConsumerName string
	// BlockTimeout is how long a single read waits for new entries.
	BlockTimeout time.Duration
	// BodyField is the entry field holding the message body, all other
	// fields become headers.
	BodyField string
}

func (c Config) applyDefaults() Config {
	if c.ConsumerName == "" {
		c.ConsumerName = "consumer-" + uuid.NewString()
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = DefaultBlockTimeout
	}
	if c.BodyField == "" {
		c.BodyField = DefaultBodyField
	}
	return c
}

// Connector opens Redis connections.
type Connector struct {
	logger    log.CtxLogger
	config    Config
	newClient func(Config) redisClient
}

var _ broker.Connector = (*Connector)(nil)

func NewConnector(logger log.CtxLogger, config Config) *Connector {
	return &Connector{
		logger: logger.WithComponent("redisstream.Connector"),
		config: config.applyDefaults(),
		newClient: func(c Config) redisClient {
			return redis.NewClient(&redis.Options{
				Addr:     c.Addr,
				Username: c.Username,
				Password: c.Password,
				DB:       c.DB,
			})
		},
	}
}

func (c *Connector) Kind() string { return Kind }

// Connect opens a client and checks that the server responds.
func (c *Connector) Connect(ctx context.Context) (broker.Client, error) {
	rc := c.newClient(c.config)
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, cerrors.Errorf("could not reach redis at %s: %w", c.config.Addr, classify(err))
	}
	c.logger.Debug(ctx).
		Str("consumer", c.config.ConsumerName).
		Msg("connected to redis")
	return &client{
		logger: c.logger.WithComponent("redisstream.client"),
		config: c.config,
		rc:     rc,
	}, nil
}

// classify marks replies of an overloaded server and network timeouts as
// transient. Server replies are matched by their prefix.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if cerrors.As(err, &netErr) && netErr.Timeout() {
		return broker.NewTransientError(broker.Timeout, err)
	}
	msg := err.Error()
	for _, prefix := range []string{"BUSY ", "LOADING ", "TRYAGAIN ", "CLUSTERDOWN "} {
		if strings.HasPrefix(msg, prefix) {
			return broker.NewTransientError(broker.Busy, err)
		}
	}
	if strings.HasPrefix(msg, "NOGROUP ") {
		return cerrors.Errorf("%s: %w", msg, broker.ErrNotFound)
	}
	return err
}
