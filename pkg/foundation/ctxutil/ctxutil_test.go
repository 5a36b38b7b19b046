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
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/google/uuid"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestContextWithMessageID(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	messageID := uuid.NewString()

	ctx = ContextWithMessageID(ctx, "existing message ID")
	ctx = ContextWithMessageID(ctx, messageID)
	is.Equal(MessageIDFromContext(ctx), messageID)
	is.Equal(MessageIDFromContext(context.Background()), "")
}

func TestContextWithSessionID(t *testing.T) {
	is := is.New(t)

	ctx := ContextWithSessionID(context.Background(), "customer-42")
	is.Equal(SessionIDFromContext(ctx), "customer-42")
	is.Equal(SessionIDFromContext(context.Background()), "")
}

func TestLogCtxHooks(t *testing.T) {
	is := is.New(t)

	messageID := uuid.NewString()
	ctx := ContextWithMessageID(context.Background(), messageID)
	ctx = ContextWithSessionID(ctx, "s1")

	var out bytes.Buffer
	logger := log.New(zerolog.New(&out)).CtxHook(MessageIDLogCtxHook{}, SessionIDLogCtxHook{})
	logger.Info(ctx).Send()

	want := fmt.Sprintf(`{"level":"info","%s":"%s","%s":"s1"}`, log.MessageIDField, messageID, log.SessionIDField)
	is.Equal(out.String(), want+"\n")
}

func TestLogCtxHooks_EmptyCtx(t *testing.T) {
	is := is.New(t)

	var out bytes.Buffer
	logger := log.New(zerolog.New(&out)).CtxHook(MessageIDLogCtxHook{}, SessionIDLogCtxHook{})
	logger.Info(context.Background()).Send()

	is.Equal(out.String(), `{"level":"info"}`+"\n")
}
