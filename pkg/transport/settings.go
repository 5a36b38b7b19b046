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
	"net/url"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
)

const (
	DefaultMaxConcurrentCalls = 1
	DefaultSessionIdleTimeout = time.Second * 10
)

// Settings describe the subscription a transport receives from. They are
// owned by the host and never changed by the transport.
type Settings struct {
	// TopicPath is the topic the subscription belongs to.
	TopicPath string
	// SubscriptionName is the name of the durable subscription.
	SubscriptionName string
	// PrefetchCount is the number of messages the broker may push to the
	// receiver ahead of processing. Defaults to twice MaxConcurrentCalls.
	PrefetchCount int
	// MaxConcurrentCalls limits how many messages are handled at the same
	// time by a receiver without sessions.
	MaxConcurrentCalls int
	// RequiresSession switches the transport to session receivers, which
	// preserve the order of messages within a session.
	RequiresSession bool
	// MaxConcurrentSessions limits how many sessions are locked at the same
	// time. Defaults to MaxConcurrentCalls.
	MaxConcurrentSessions int
	// SessionIdleTimeout is how long a session stays locked without
	// receiving a message before it is released.
	SessionIdleTimeout time.Duration
	// BrokerKind overrides the broker kind reported by Probe. Defaults to
	// the kind of the connector.
	BrokerKind string
}

// WithDefaults returns a copy of the settings with all unset values replaced
// by their defaults.
func (s Settings) WithDefaults() Settings {
	if s.MaxConcurrentCalls == 0 {
		s.MaxConcurrentCalls = DefaultMaxConcurrentCalls
	}
	if s.PrefetchCount == 0 {
		s.PrefetchCount = s.MaxConcurrentCalls * 2
	}
	if s.MaxConcurrentSessions == 0 {
		s.MaxConcurrentSessions = s.MaxConcurrentCalls
	}
	if s.SessionIdleTimeout == 0 {
		s.SessionIdleTimeout = DefaultSessionIdleTimeout
	}
	return s
}

// Validate returns an error describing all invalid values.
func (s Settings) Validate() error {
	var errs []error
	if s.TopicPath == "" {
		errs = append(errs, cerrors.New("topic path is empty"))
	}
	if s.SubscriptionName == "" {
		errs = append(errs, cerrors.New("subscription name is empty"))
	}
	if s.PrefetchCount < 0 {
		errs = append(errs, cerrors.Errorf("prefetch count %d is negative", s.PrefetchCount))
	}
	if s.MaxConcurrentCalls < 0 {
		errs = append(errs, cerrors.Errorf("max concurrent calls %d is negative", s.MaxConcurrentCalls))
	}
	if s.MaxConcurrentSessions < 0 {
		errs = append(errs, cerrors.Errorf("max concurrent sessions %d is negative", s.MaxConcurrentSessions))
	}
	if s.SessionIdleTimeout < 0 {
		errs = append(errs, cerrors.Errorf("session idle timeout %v is negative", s.SessionIdleTimeout))
	}
	return cerrors.Join(errs...)
}

func (s Settings) subscription() broker.Subscription {
	return broker.Subscription{
		TopicPath:          s.TopicPath,
		Name:               s.SubscriptionName,
		RequiresSession:    s.RequiresSession,
		PrefetchCount:      s.PrefetchCount,
		SessionIdleTimeout: s.SessionIdleTimeout,
	}
}

// Address identifies a transport in logs, events and probe results. It is
// never used to route messages.
type Address string

// NewAddress joins the host address with the path of the subscription,
// e.g. "amqps://host/orders/Subscriptions/billing".
func NewAddress(hostAddress string, topicPath, subscriptionName string) (Address, error) {
	u, err := url.Parse(hostAddress)
	if err != nil {
		return "", cerrors.Errorf("invalid host address %q: %w", hostAddress, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", cerrors.Errorf("invalid host address %q: missing scheme or host", hostAddress)
	}
	return Address(u.JoinPath(topicPath, "Subscriptions", subscriptionName).String()), nil
}

func (a Address) String() string {
	return string(a)
}
