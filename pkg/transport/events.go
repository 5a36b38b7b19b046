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
	"fmt"
	"time"
)

// ReceiveEventKind is the stage of a message in the receive lifecycle.
type ReceiveEventKind int

const (
	// MessageReceived is published before the handler is called.
	MessageReceived ReceiveEventKind = iota + 1
	// MessageConsumed is published after the handler succeeded and the
	// message was completed.
	MessageConsumed
	// MessageFaulted is published when the handler failed or the message
	// could not be settled.
	MessageFaulted
	// MessageAbandoned is published when the stop deadline interrupted the
	// handler and the message was given back to the broker.
	MessageAbandoned
)

func (k ReceiveEventKind) String() string {
	switch k {
	case MessageReceived:
		return "received"
	case MessageConsumed:
		return "consumed"
	case MessageFaulted:
		return "faulted"
	case MessageAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("ReceiveEventKind(%d)", int(k))
	}
}

// ReceiveEvent is published for every message passing through a receiver.
type ReceiveEvent struct {
	Kind    ReceiveEventKind
	Context *ReceiveContext
	// Duration is the time spent in the handler, it is zero for
	// MessageReceived.
	Duration time.Duration
	// Err is set for MessageFaulted and MessageAbandoned.
	Err error
}

// EndpointEventKind is the stage of the transport endpoint.
type EndpointEventKind int

const (
	// EndpointReady is published whenever a connection attempt starts
	// receiving messages.
	EndpointReady EndpointEventKind = iota + 1
	// EndpointFaulted is published once per failed connection attempt.
	EndpointFaulted
	// EndpointStopping is published when the transport is asked to stop.
	EndpointStopping
	// EndpointCompleted is published once the transport stopped.
	EndpointCompleted
)

func (k EndpointEventKind) String() string {
	switch k {
	case EndpointReady:
		return "ready"
	case EndpointFaulted:
		return "faulted"
	case EndpointStopping:
		return "stopping"
	case EndpointCompleted:
		return "completed"
	default:
		return fmt.Sprintf("EndpointEventKind(%d)", int(k))
	}
}

// EndpointEvent is published on changes of the transport endpoint.
type EndpointEvent struct {
	Kind    EndpointEventKind
	Address Address
	// Fault is set for EndpointFaulted.
	Fault *FaultRecord
}

// FaultRecord describes a failed connection attempt. It is created once per
// fault and must not be modified.
type FaultRecord struct {
	Address Address
	Err     error
}

func (f FaultRecord) Error() string {
	return fmt.Sprintf("transport %s faulted: %v", f.Address, f.Err)
}

func (f FaultRecord) Unwrap() error {
	return f.Err
}
