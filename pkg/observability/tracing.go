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
	"sync"

	"github.com/conduitio/conduit-subscriber/pkg/eventbus"
	"github.com/conduitio/conduit-subscriber/pkg/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTracerName = "github.com/conduitio/conduit-subscriber"

const (
	attrSubscription  = attribute.Key("messaging.destination.subscription.name")
	attrMessageID     = attribute.Key("messaging.message.id")
	attrDeliveryCount = attribute.Key("messaging.message.delivery_count")
	attrSessionID     = attribute.Key("subscriber.session_id")
	attrConnectionID  = attribute.Key("subscriber.connection_id")
)

// Tracing creates one span per message. The span starts when the message is
// received and ends when it is consumed, faulted or abandoned.
type Tracing struct {
	tracer trace.Tracer

	m     sync.Mutex
	spans map[*transport.ReceiveContext]trace.Span
}

// NewTracing creates a tracing observer using a tracer from tp. If tp is nil
// the global tracer provider is used.
func NewTracing(tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{
		tracer: tp.Tracer(DefaultTracerName),
		spans:  make(map[*transport.ReceiveContext]trace.Span),
	}
}

// ObserveReceive starts or ends the span of the message in the event.
func (t *Tracing) ObserveReceive(ctx context.Context, e transport.ReceiveEvent) {
	if e.Context == nil {
		return
	}
	switch e.Kind {
	case transport.MessageReceived:
		t.start(ctx, e.Context)
	case transport.MessageConsumed:
		if span, ok := t.take(e.Context); ok {
			span.SetStatus(codes.Ok, "")
			span.End()
		}
	case transport.MessageFaulted:
		if span, ok := t.take(e.Context); ok {
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			} else {
				span.SetStatus(codes.Error, "faulted")
			}
			span.End()
		}
	case transport.MessageAbandoned:
		if span, ok := t.take(e.Context); ok {
			span.AddEvent("abandoned")
			span.End()
		}
	}
}

// ObserveEndpoint records every endpoint fault as a short span carrying the
// fault as an error.
func (t *Tracing) ObserveEndpoint(ctx context.Context, e transport.EndpointEvent) {
	if e.Kind != transport.EndpointFaulted || e.Fault == nil {
		return
	}
	_, span := t.tracer.Start(ctx, "endpoint.fault",
		trace.WithAttributes(attrSubscription.String(e.Address.String())),
	)
	span.RecordError(e.Fault)
	span.SetStatus(codes.Error, e.Fault.Error())
	span.End()
}

// Connect subscribes the tracer to both buses of t.
func (t *Tracing) Connect(tr *transport.ReceiveTransport) *Connection {
	return &Connection{handles: []*eventbus.Handle{
		tr.ConnectReceiveObserver(t.ObserveReceive),
		tr.ConnectEndpointObserver(t.ObserveEndpoint),
	}}
}

// Pending returns the number of spans that were started and not yet ended.
func (t *Tracing) Pending() int {
	t.m.Lock()
	defer t.m.Unlock()
	return len(t.spans)
}

func (t *Tracing) start(ctx context.Context, rc *transport.ReceiveContext) {
	attrs := []attribute.KeyValue{
		attrSubscription.String(rc.Address.String()),
		attrConnectionID.String(rc.ConnectionID),
	}
	if rc.Message != nil {
		attrs = append(attrs,
			attrMessageID.String(rc.Message.ID),
			attrDeliveryCount.Int(rc.Message.DeliveryCount),
		)
	}
	if rc.SessionID != "" {
		attrs = append(attrs, attrSessionID.String(rc.SessionID))
	}

	_, span := t.tracer.Start(ctx, "receive",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithTimestamp(rc.ReceivedAt),
		trace.WithAttributes(attrs...),
	)

	t.m.Lock()
	defer t.m.Unlock()
	t.spans[rc] = span
}

func (t *Tracing) take(rc *transport.ReceiveContext) (trace.Span, bool) {
	t.m.Lock()
	defer t.m.Unlock()
	span, ok := t.spans[rc]
	delete(t.spans, rc)
	return span, ok
}
