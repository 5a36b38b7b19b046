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

package ctxutil

import (
	"context"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/rs/zerolog"
)

type sessionIDCtxKey struct{}

// ContextWithSessionID wraps ctx and returns a context that contains the ID of
// the broker session a message belongs to.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDCtxKey{}, sessionID)
}

// SessionIDFromContext fetches the session ID from the context.
func SessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDCtxKey{}).(string)
	return sessionID
}

// SessionIDLogCtxHook adds the session ID stored in the context to the log
// output.
type SessionIDLogCtxHook struct{}

// Run executes the log hook.
func (h SessionIDLogCtxHook) Run(ctx context.Context, e *zerolog.Event, _ zerolog.Level) {
	if id := SessionIDFromContext(ctx); id != "" {
		e.Str(log.SessionIDField, id)
	}
}
