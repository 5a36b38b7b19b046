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

// Package transport receives messages from a durable subscription and hands
// them to a handler. The transport reconnects with backoff whenever the
// connection to the broker fails and stops gracefully, draining messages that
// are being processed.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/eventbus"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/csync"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/ctxutil"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/conduitio/conduit-subscriber/pkg/pipe"
	"github.com/conduitio/conduit-subscriber/pkg/retry"
	"github.com/conduitio/conduit-subscriber/pkg/supervisor"
	"github.com/google/uuid"
)

var (
	ErrAlreadyStarted = cerrors.New("transport already started")
	ErrNilHandler     = cerrors.New("handler is nil")
)

// State of a ReceiveTransport. A transport moves through the states in order
// and never goes back.
type State int

const (
	StateCreated State = iota
	StateStarted
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	// StageReconnect marks retries of the reconnect loop.
	StageReconnect = "reconnect"
	// StageConnectionRetry marks retries of transient connection errors.
	StageConnectionRetry = FilterConnectionRetry
)

// RetryObserver is notified before the transport waits for a retry. Stage is
// StageReconnect or StageConnectionRetry.
type RetryObserver func(ctx context.Context, stage string, attempt retry.Attempt)

// Option configures a ReceiveTransport.
type Option func(*ReceiveTransport)

// WithReconnectPolicy replaces the policy used between failed connection
// attempts. The default is an unlimited exponential backoff.
func WithReconnectPolicy(p retry.Policy) Option {
	return func(t *ReceiveTransport) {
		t.reconnectPolicy = p
	}
}

// WithConnectionRetryPolicy replaces the policy used to retry transient
// connection and provisioning errors. The default is retry.DefaultIntervals.
func WithConnectionRetryPolicy(p retry.Policy) Option {
	return func(t *ReceiveTransport) {
		t.connectionRetryPolicy = p
	}
}

// WithRetryObserver registers an observer of retries.
func WithRetryObserver(o RetryObserver) Option {
	return func(t *ReceiveTransport) {
		t.retryObservers = append(t.retryObservers, o)
	}
}

// ReceiveTransport receives messages from a single subscription. It can be
// started once and is stopped through the returned Handle.
type ReceiveTransport struct {
	logger    log.CtxLogger
	connector broker.Connector
	settings  Settings
	address   Address

	reconnectPolicy       retry.Policy
	connectionRetryPolicy retry.Policy
	retryObservers        []RetryObserver

	receiveBus  *eventbus.Bus[ReceiveEvent]
	endpointBus *eventbus.Bus[EndpointEvent]

	pipe  *pipe.Pipe[*ConnectionContext]
	state csync.ValueWatcher[State]

	// handler is set once by Start before any receiver runs
	handler Handler
}

// New creates a transport receiving from the subscription described by
// settings on the broker reachable through connector. The host address is
// only used to build the transport address.
func New(
	logger log.CtxLogger,
	connector broker.Connector,
	hostAddress string,
	settings Settings,
	opts ...Option,
) (*ReceiveTransport, error) {
	if connector == nil {
		return nil, cerrors.New("connector is nil")
	}
	settings = settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return nil, cerrors.Errorf("invalid settings: %w", err)
	}
	address, err := NewAddress(hostAddress, settings.TopicPath, settings.SubscriptionName)
	if err != nil {
		return nil, err
	}

	logger = logger.WithComponent("transport.ReceiveTransport").
		CtxHook(ctxutil.MessageIDLogCtxHook{}, ctxutil.SessionIDLogCtxHook{})
	t := &ReceiveTransport{
		logger:    logger,
		connector: connector,
		settings:  settings,
		address:   address,
		reconnectPolicy: retry.Exponential{
			Min:    retry.DefaultExponentialMin,
			Max:    retry.DefaultExponentialMax,
			Factor: retry.DefaultExponentialFactor,
		},
		connectionRetryPolicy: retry.Intervals{Intervals: retry.DefaultIntervals},
		receiveBus:            eventbus.New[ReceiveEvent](logger),
		endpointBus:           eventbus.New[EndpointEvent](logger),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.pipe, err = t.buildPipe()
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ConnectReceiveObserver registers an observer of message events. It can be
// called before or after Start.
func (t *ReceiveTransport) ConnectReceiveObserver(o eventbus.Observer[ReceiveEvent]) *eventbus.Handle {
	return t.receiveBus.Connect(o)
}

// ConnectEndpointObserver registers an observer of endpoint events. It can be
// called before or after Start.
func (t *ReceiveTransport) ConnectEndpointObserver(o eventbus.Observer[EndpointEvent]) *eventbus.Handle {
	return t.endpointBus.Connect(o)
}

// State returns the current state of the transport.
func (t *ReceiveTransport) State() State {
	return t.state.Get()
}

// Address returns the address identifying the transport.
func (t *ReceiveTransport) Address() Address {
	return t.address
}

// Start starts receiving messages in the background and passes them to
// handler. It returns right away, broker failures are reported to endpoint
// observers and never returned by Start. Start can be called only once.
func (t *ReceiveTransport) Start(handler Handler) (*Handle, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !t.state.CompareAndSet(csync.WatchValues(StateCreated), StateStarted) {
		return nil, cerrors.Errorf("could not start transport %s in state %s: %w", t.address, t.state.Get(), ErrAlreadyStarted)
	}
	t.handler = handler

	sup := supervisor.New(t.logger)
	if err := sup.Go("reconnect", func(ctx context.Context) error {
		return t.reconnect(ctx, sup.Stopped())
	}); err != nil {
		// a new supervisor always accepts tasks
		return nil, cerrors.Errorf("could not start reconnect loop: %w", err)
	}

	t.logger.Info(sup.Stopping()).
		Str(log.AddressField, t.address.String()).
		Str(log.BrokerField, t.connector.Kind()).
		Msg("transport started")
	return &Handle{transport: t, supervisor: sup}, nil
}

// reconnect keeps sending new connection contexts through the pipe until
// stopping is done. Faulted attempts are retried with the reconnect policy, a
// completed attempt starts over with a fresh policy.
func (t *ReceiveTransport) reconnect(stopping, stopped context.Context) error {
	var attempt int
	for stopping.Err() == nil {
		err := retry.Run(
			stopping,
			t.reconnectPolicy,
			func(ctx context.Context) error {
				attempt++
				return t.connectOnce(ctx, stopped, attempt)
			},
			retry.WithOnRetry(t.notifyRetry(stopping, StageReconnect)),
		)
		if err != nil {
			t.logger.Err(stopping, err).
				Str(log.AddressField, t.address.String()).
				Msg("reconnect loop ended, transport stays idle until stopped")
			return err
		}
	}
	return nil
}

// connectOnce runs a single connection attempt. It returns nil if the attempt
// completed or was cancelled and the error of the attempt if it faulted.
func (t *ReceiveTransport) connectOnce(stopping, stopped context.Context, attempt int) error {
	cc := &ConnectionContext{
		ID:       uuid.NewString(),
		Attempt:  attempt,
		Settings: t.settings,
		Address:  t.address,
		Stopping: stopping,
	}

	start := time.Now()
	res := t.pipe.Send(stopped, cc)

	switch {
	case res.Outcome == pipe.Completed:
		t.logger.Debug(stopping).
			Str(log.ConnectionIDField, cc.ID).
			Dur(log.DurationField, time.Since(start)).
			Msg("connection attempt completed")
		return nil
	case stopping.Err() != nil:
		// the attempt ended because of the stop request, this is not a fault
		t.logger.Debug(stopped).
			Str(log.ConnectionIDField, cc.ID).
			Stringer("outcome", res.Outcome).
			Msg("connection attempt cancelled")
		return nil
	}

	fault := &FaultRecord{Address: t.address, Err: res.Err}
	t.logger.Warn(stopping).
		Err(res.Err).
		Str(log.ConnectionIDField, cc.ID).
		Int(log.AttemptField, attempt).
		Str(log.AddressField, t.address.String()).
		Msg("connection attempt faulted")
	t.endpointBus.Publish(stopping, EndpointEvent{
		Kind:    EndpointFaulted,
		Address: t.address,
		Fault:   fault,
	})
	return res.Err
}

func (t *ReceiveTransport) notifyRetry(ctx context.Context, stage string) func(retry.Attempt) {
	return func(a retry.Attempt) {
		t.logger.Debug(ctx).
			Err(a.Err).
			Str("stage", stage).
			Int(log.AttemptField, a.Number).
			Dur(log.DurationField, a.Delay).
			Msg("retrying")
		for _, o := range t.retryObservers {
			o(ctx, stage, a)
		}
	}
}
