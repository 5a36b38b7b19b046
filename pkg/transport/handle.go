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
	"sync"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/csync"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/conduitio/conduit-subscriber/pkg/supervisor"
)

// Handle is returned by ReceiveTransport.Start and stops the transport.
type Handle struct {
	transport  *ReceiveTransport
	supervisor *supervisor.Supervisor
	once       sync.Once
}

// Stop asks the transport to stop receiving and waits until all messages in
// flight were settled or ctx is done. When ctx is done first, handlers still
// running are abandoned, this is not reported as an error. Stop can be called
// multiple times and concurrently, every call returns once the transport
// stopped.
func (h *Handle) Stop(ctx context.Context) error {
	t := h.transport
	if t.state.CompareAndSet(csync.WatchValues(StateStarted), StateStopping) {
		t.logger.Info(ctx).Str(log.AddressField, t.address.String()).Msg("stopping transport")
		t.endpointBus.Publish(ctx, EndpointEvent{Kind: EndpointStopping, Address: t.address})
	}

	err := h.supervisor.Stop(ctx, "transport stopped")

	h.once.Do(func() {
		t.state.Set(StateStopped)
		t.endpointBus.Publish(ctx, EndpointEvent{Kind: EndpointCompleted, Address: t.address})
		t.logger.Info(ctx).Str(log.AddressField, t.address.String()).Msg("transport stopped")
	})
	return err
}

// Wait blocks until the transport stopped or ctx is done. It does not request
// a stop. If a Stop is in progress, Wait returns only after the transport
// reached StateStopped.
func (h *Handle) Wait(ctx context.Context) error {
	if err := h.supervisor.Wait(ctx); err != nil {
		return err
	}
	if h.transport.state.Get() != StateStopping {
		return nil
	}
	_, err := h.transport.state.Watch(ctx, csync.WatchValues(StateStopped))
	return err
}
