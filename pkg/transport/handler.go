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

	"github.com/conduitio/conduit-subscriber/pkg/pipe"
)

// Handler processes received messages. A message is completed when Handle
// returns nil and abandoned otherwise, so the broker delivers it again.
type Handler interface {
	Handle(ctx context.Context, rc *ReceiveContext) error
}

// HandlerFunc is an adapter allowing the use of an ordinary function as a
// Handler.
type HandlerFunc func(ctx context.Context, rc *ReceiveContext) error

func (f HandlerFunc) Handle(ctx context.Context, rc *ReceiveContext) error {
	return f(ctx, rc)
}

// PipeHandler returns a Handler that sends every message through p. Only a
// completed send counts as success.
func PipeHandler(p *pipe.Pipe[*ReceiveContext]) Handler {
	return HandlerFunc(func(ctx context.Context, rc *ReceiveContext) error {
		res := p.Send(ctx, rc)
		if res.Outcome != pipe.Completed {
			return res.Err
		}
		return nil
	})
}
