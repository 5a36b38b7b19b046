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
	"sync/atomic"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
)

// ConnectionContext is the value sent through the connection pipe. A new one
// is created for every reconnect attempt and discarded when the attempt
// returns.
type ConnectionContext struct {
	// ID identifies the attempt in logs and receive contexts.
	ID string
	// Attempt is the 1-based number of the reconnect attempt.
	Attempt  int
	Settings Settings
	Address  Address
	// Stopping is done as soon as the transport is asked to stop. Filters
	// use it for every wait that should end early on stop.
	Stopping context.Context
	// Client is set by the connect filter for the filters after it.
	Client broker.Client

	// established is set once a receiver is ready and cleared by the
	// connection-retry filter, which then starts its policy over.
	established atomic.Bool
}

// ReceiveContext is passed to the handler for every received message.
type ReceiveContext struct {
	Message *broker.Message
	// SessionID is empty unless the subscription requires sessions.
	SessionID    string
	Address      Address
	ConnectionID string
	ReceivedAt   time.Time
}
