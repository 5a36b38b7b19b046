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

package observability

import (
	"context"
	"testing"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/conduitio/conduit-subscriber/pkg/transport"
	"github.com/matryer/is"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestTracing(t *testing.T) (*Tracing, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return NewTracing(tp), rec
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_Consumed(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	tr, rec := newTestTracing(t)

	rc := testReceiveContext("m1")
	rc.SessionID = "s1"
	tr.ObserveReceive(ctx, receiveEvent(transport.MessageReceived, rc, 0, nil))
	is.Equal(tr.Pending(), 1)
	is.Equal(len(rec.Started()), 1)
	is.Equal(len(rec.Ended()), 0)

	tr.ObserveReceive(ctx, receiveEvent(transport.MessageConsumed, rc, time.Millisecond, nil))
	is.Equal(tr.Pending(), 0)

	ended := rec.Ended()
	is.Equal(len(ended), 1)
	span := ended[0]
	is.Equal(span.Name(), "receive")
	is.Equal(span.SpanKind(), trace.SpanKindConsumer)
	is.Equal(span.Status().Code, codes.Ok)
	is.True(span.StartTime().Equal(rc.ReceivedAt))

	id, ok := spanAttr(span, attrMessageID)
	is.True(ok)
	is.Equal(id.AsString(), "m1")
	session, ok := spanAttr(span, attrSessionID)
	is.True(ok)
	is.Equal(session.AsString(), "s1")
	sub, ok := spanAttr(span, attrSubscription)
	is.True(ok)
	is.Equal(sub.AsString(), testAddr.String())
}

func TestTracing_Faulted(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	tr, rec := newTestTracing(t)

	rc := testReceiveContext("m1")
	tr.ObserveReceive(ctx, receiveEvent(transport.MessageReceived, rc, 0, nil))
	tr.ObserveReceive(ctx, receiveEvent(transport.MessageFaulted, rc, time.Millisecond, cerrors.New("boom")))

	ended := rec.Ended()
	is.Equal(len(ended), 1)
	is.Equal(ended[0].Status().Code, codes.Error)
	is.Equal(ended[0].Status().Description, "boom")
	is.Equal(len(ended[0].Events()), 1) // recorded error
	_, ok := spanAttr(ended[0], attrSessionID)
	is.True(!ok)
}

func TestTracing_UnknownMessage(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	tr, rec := newTestTracing(t)

	tr.ObserveReceive(ctx, receiveEvent(transport.MessageConsumed, testReceiveContext("m1"), 0, nil))
	tr.ObserveReceive(ctx, transport.ReceiveEvent{Kind: transport.MessageReceived})
	is.Equal(len(rec.Started()), 0)
	is.Equal(tr.Pending(), 0)
}

func TestTracing_ObserveEndpoint(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	tr, rec := newTestTracing(t)

	tr.ObserveEndpoint(ctx, transport.EndpointEvent{Kind: transport.EndpointReady, Address: testAddr})
	tr.ObserveEndpoint(ctx, transport.EndpointEvent{
		Kind:    transport.EndpointFaulted,
		Address: testAddr,
		Fault:   &transport.FaultRecord{Address: testAddr, Err: cerrors.New("connection refused")},
	})

	ended := rec.Ended()
	is.Equal(len(ended), 1)
	is.Equal(ended[0].Name(), "endpoint.fault")
	is.Equal(ended[0].Status().Code, codes.Error)
}

func TestTracing_Abandoned(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	tr, rec := newTestTracing(t)

	rc := testReceiveContext("m1")
	tr.ObserveReceive(ctx, receiveEvent(transport.MessageReceived, rc, 0, nil))
	tr.ObserveReceive(ctx, receiveEvent(transport.MessageAbandoned, rc, time.Millisecond, context.Canceled))

	is.Equal(tr.Pending(), 0)
	ended := rec.Ended()
	is.Equal(len(ended), 1)
	is.Equal(ended[0].Status().Code, codes.Unset)
	is.Equal(len(ended[0].Events()), 1)
	is.Equal(ended[0].Events()[0].Name, "abandoned")
}
