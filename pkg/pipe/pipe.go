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

// Package pipe implements a chain of filters. Each filter receives a value of
// type C, can act on it before and after handing it to the rest of the chain,
// and decides whether the rest of the chain runs at all.
package pipe

import (
	"context"
	"fmt"
	"strings"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
)

var (
	ErrDuplicateID = cerrors.New("duplicate filter ID")
	ErrNilFilter   = cerrors.New("filter is nil")
)

// Filter is a single step in a Pipe.
type Filter[C any] interface {
	// ID returns the identifier of this Filter. Each Filter in a pipe must be
	// uniquely identified by the ID.
	ID() string
	// Send processes c. It is up to the filter to call next.Send to pass c to
	// the rest of the chain.
	Send(ctx context.Context, c C, next Next[C]) error
}

// Next is the remainder of the chain following a filter.
type Next[C any] []Filter[C]

// Send passes c to the first filter of the remainder of the chain. Sending on
// an empty chain is a no-op.
func (n Next[C]) Send(ctx context.Context, c C) error {
	if len(n) == 0 {
		return nil
	}
	return n[0].Send(ctx, c, n[1:])
}

type funcFilter[C any] struct {
	id string
	fn func(ctx context.Context, c C, next Next[C]) error
}

func (f funcFilter[C]) ID() string { return f.id }
func (f funcFilter[C]) Send(ctx context.Context, c C, next Next[C]) error {
	return f.fn(ctx, c, next)
}

// Func creates a filter out of a function.
func Func[C any](id string, fn func(ctx context.Context, c C, next Next[C]) error) Filter[C] {
	return funcFilter[C]{id: id, fn: fn}
}

// Pipe is an immutable chain of filters. It is safe for concurrent use as long
// as its filters are.
type Pipe[C any] struct {
	filters Next[C]
}

// Send sends c through the pipe and classifies the outcome. A panic in any
// filter is recovered and reported as a fault.
func (p *Pipe[C]) Send(ctx context.Context, c C) Result {
	return Classify(ctx, p.send(ctx, c))
}

func (p *Pipe[C]) send(ctx context.Context, c C) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = cerrors.Errorf("pipe panicked: %w", rerr)
				return
			}
			err = cerrors.Errorf("pipe panicked: %v", r)
		}
	}()
	return p.filters.Send(ctx, c)
}

// IDs returns the IDs of all filters in the order in which they run.
func (p *Pipe[C]) IDs() []string {
	ids := make([]string, len(p.filters))
	for i, f := range p.filters {
		ids[i] = f.ID()
	}
	return ids
}

func (p *Pipe[C]) String() string {
	return strings.Join(p.IDs(), " -> ")
}

// Builder assembles a Pipe. The zero value is ready to use.
type Builder[C any] struct {
	filters []Filter[C]
	errs    []error
}

// NewBuilder returns an empty builder.
func NewBuilder[C any]() *Builder[C] {
	return &Builder[C]{}
}

// Use appends f to the pipe.
func (b *Builder[C]) Use(f Filter[C]) *Builder[C] {
	if f == nil {
		b.errs = append(b.errs, cerrors.Errorf("filter %d: %w", len(b.filters), ErrNilFilter))
		return b
	}
	for _, existing := range b.filters {
		if existing.ID() == f.ID() {
			b.errs = append(b.errs, cerrors.Errorf("%q: %w", f.ID(), ErrDuplicateID))
			return b
		}
	}
	b.filters = append(b.filters, f)
	return b
}

// UseIf appends f to the pipe only if cond is true.
func (b *Builder[C]) UseIf(cond bool, f Filter[C]) *Builder[C] {
	if !cond {
		return b
	}
	return b.Use(f)
}

// Build returns the pipe or the errors collected while adding filters.
func (b *Builder[C]) Build() (*Pipe[C], error) {
	if err := cerrors.Join(b.errs...); err != nil {
		return nil, cerrors.Errorf("could not build pipe: %w", err)
	}
	filters := make(Next[C], len(b.filters))
	copy(filters, b.filters)
	return &Pipe[C]{filters: filters}, nil
}

// Outcome of sending a value through a pipe.
type Outcome int

const (
	// Completed means all filters returned without an error.
	Completed Outcome = iota
	// Cancelled means the pipe stopped because it was asked to.
	Cancelled
	// Faulted means a filter failed.
	Faulted
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result of Pipe.Send. Err is set for Cancelled and Faulted outcomes.
type Result struct {
	Outcome Outcome
	Err     error
}

// Classify turns the error returned by a chain into a Result. Context
// cancellation, either reported through err or through ctx, is classified as
// Cancelled.
func Classify(ctx context.Context, err error) Result {
	switch {
	case err == nil:
		return Result{Outcome: Completed}
	case cerrors.Is(err, context.Canceled),
		cerrors.Is(err, context.DeadlineExceeded),
		ctx.Err() != nil:
		return Result{Outcome: Cancelled, Err: err}
	default:
		return Result{Outcome: Faulted, Err: err}
	}
}
