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

// Package cchan contains context-aware channel helpers.
package cchan

import "context"

// Chan is a receive-only channel with methods that respect a context.
type Chan[T any] <-chan T

// Recv receives a value from the channel, same as <-c. It returns the context
// error if ctx is done first. The boolean reports whether the value was
// delivered by a send (false when the channel is closed).
func (c Chan[T]) Recv(ctx context.Context) (T, bool, error) {
	select {
	case val, ok := <-c:
		return val, ok, nil
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// Closed waits until c is closed or ctx is done. It returns the context error
// in the latter case.
func Closed(ctx context.Context, c <-chan struct{}) error {
	_, _, err := Chan[struct{}](c).Recv(ctx)
	return err
}
