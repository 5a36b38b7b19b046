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

// Package broker defines the contract between the receive transport and a
// message broker offering durable subscriptions. Adapters for concrete brokers
// live in sub-packages.
package broker

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mock/broker.go -package=mock -mock_names=Connector=Connector,Client=Client,Receiver=Receiver,SessionReceiver=SessionReceiver . Connector,Client,Receiver,SessionReceiver

// Connector dials a broker.
type Connector interface {
	// Connect opens a new connection. Every reconnect attempt calls Connect
	// again, the returned Client is closed once the attempt is over.
	Connect(ctx context.Context) (Client, error)
	// Kind returns a short name of the broker, used for diagnostics.
	Kind() string
}

// Client is an open connection to a broker.
type Client interface {
	// ProvisionSubscription makes sure the subscription exists. If it already
	// exists ErrAlreadyExists is returned, callers treat that as success.
	ProvisionSubscription(ctx context.Context, sub Subscription) error
	// OpenReceiver opens a receiver on a subscription without sessions.
	OpenReceiver(ctx context.Context, sub Subscription) (Receiver, error)
	// AcceptSession blocks until a session with pending messages can be
	// locked exclusively and returns a receiver bound to it. If no session
	// becomes available in a reasonable time ErrNoSessionAvailable is
	// returned. Brokers without sessions return ErrSessionsNotSupported.
	AcceptSession(ctx context.Context, sub Subscription) (SessionReceiver, error)
	// Close releases the connection.
	Close(ctx context.Context) error
}

// Receiver receives messages from a subscription.
type Receiver interface {
	// Receive blocks until a message is available. Session receivers return
	// ErrSessionIdle once no message arrived within the idle timeout.
	Receive(ctx context.Context) (*Message, error)
	// Complete removes the message from the subscription.
	Complete(ctx context.Context, msg *Message) error
	// Abandon releases the message so it is delivered again.
	Abandon(ctx context.Context, msg *Message) error
	// Close releases the receiver, unsettled messages are redelivered.
	Close(ctx context.Context) error
}

// SessionReceiver is a Receiver holding the lock on a single session.
// Messages of a session are delivered in order.
type SessionReceiver interface {
	Receiver
	SessionID() string
}

// Subscription describes the logical subscription the transport receives
// from.
type Subscription struct {
	TopicPath          string
	Name               string
	RequiresSession    bool
	PrefetchCount      int
	SessionIdleTimeout time.Duration
}

// Message is a message received from a subscription.
type Message struct {
	ID            string
	SessionID     string
	Subject       string
	Body          []byte
	Headers       map[string]string
	DeliveryCount int
	EnqueuedAt    time.Time

	// Token is owned by the adapter that produced the message and used to
	// settle it.
	Token any
}
