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
	"context"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/conduitio/conduit-subscriber/pkg/pipe"
	"github.com/conduitio/conduit-subscriber/pkg/retry"
)

// IDs of the filters in the connection pipe.
const (
	FilterConnectionRetry = "connection-retry"
	FilterConnect         = "connect"
	FilterProvision       = "provision"
	FilterReceive         = "receive"
	FilterSessionReceive  = "session-receive"
)

// buildPipe assembles the connection pipe. The receiver is picked once, based
// on whether the subscription requires sessions.
func (t *ReceiveTransport) buildPipe() (*pipe.Pipe[*ConnectionContext], error) {
	return pipe.NewBuilder[*ConnectionContext]().
		Use(pipe.Func(FilterConnectionRetry, t.retryTransient)).
		Use(pipe.Func(FilterConnect, t.connect)).
		Use(pipe.Func(FilterProvision, t.provision)).
		UseIf(t.settings.RequiresSession, pipe.Func(FilterSessionReceive, t.receiveSessions)).
		UseIf(!t.settings.RequiresSession, pipe.Func(FilterReceive, t.receive)).
		Build()
}

// retryTransient retries the rest of the pipe as long as it fails with
// transient errors. Any other error is returned right away. A failure after
// the receiver was ready starts the policy from its first interval.
func (t *ReceiveTransport) retryTransient(
	ctx context.Context,
	cc *ConnectionContext,
	next pipe.Next[*ConnectionContext],
) error {
	return retry.Run(
		cc.Stopping,
		t.connectionRetryPolicy,
		func(context.Context) error {
			return next.Send(ctx, cc)
		},
		retry.WithClassifier(broker.IsTransient),
		retry.WithReset(func() bool { return cc.established.Swap(false) }),
		retry.WithOnRetry(t.notifyRetry(cc.Stopping, StageConnectionRetry)),
	)
}

// connect opens the broker connection used by the rest of the pipe and closes
// it once the rest of the pipe returned.
func (t *ReceiveTransport) connect(
	ctx context.Context,
	cc *ConnectionContext,
	next pipe.Next[*ConnectionContext],
) (err error) {
	client, err := t.connector.Connect(cc.Stopping)
	if err != nil {
		return cerrors.Errorf("could not connect to %s: %w", t.connector.Kind(), err)
	}
	cc.Client = client
	defer func() {
		cc.Client = nil
		closeErr := client.Close(context.WithoutCancel(ctx))
		err = cerrors.LogOrReplace(err, closeErr, func() {
			t.logger.Err(ctx, closeErr).
				Str(log.ConnectionIDField, cc.ID).
				Msg("could not close broker connection")
		})
	}()

	t.logger.Debug(ctx).
		Str(log.ConnectionIDField, cc.ID).
		Str(log.BrokerField, t.connector.Kind()).
		Msg("connected to broker")
	return next.Send(ctx, cc)
}

// provision makes sure the subscription exists before receiving from it.
func (t *ReceiveTransport) provision(
	ctx context.Context,
	cc *ConnectionContext,
	next pipe.Next[*ConnectionContext],
) error {
	err := cc.Client.ProvisionSubscription(cc.Stopping, cc.Settings.subscription())
	switch {
	case err == nil:
		t.logger.Info(ctx).
			Str(log.TopicField, cc.Settings.TopicPath).
			Str(log.SubscriptionField, cc.Settings.SubscriptionName).
			Msg("subscription created")
	case cerrors.Is(err, broker.ErrAlreadyExists):
		// nothing to do
	default:
		return cerrors.Errorf("could not provision subscription %s/%s: %w",
			cc.Settings.TopicPath, cc.Settings.SubscriptionName, err)
	}
	return next.Send(ctx, cc)
}

// ready marks the connection as established and tells endpoint observers.
func (t *ReceiveTransport) ready(ctx context.Context, cc *ConnectionContext) {
	cc.established.Store(true)
	t.endpointBus.Publish(ctx, EndpointEvent{Kind: EndpointReady, Address: cc.Address})
}
