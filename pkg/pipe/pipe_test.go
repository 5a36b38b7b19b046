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

package pipe

import (
	"context"
	"strings"
	"testing"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/matryer/is"
)

type trace struct {
	steps []string
}

func recorder(id string) Filter[*trace] {
	return Func(id, func(ctx context.Context, tr *trace, next Next[*trace]) error {
		tr.steps = append(tr.steps, id+":before")
		err := next.Send(ctx, tr)
		tr.steps = append(tr.steps, id+":after")
		return err
	})
}

func TestPipe_Order(t *testing.T) {
	is := is.New(t)

	p, err := NewBuilder[*trace]().
		Use(recorder("a")).
		Use(recorder("b")).
		UseIf(false, recorder("skipped")).
		UseIf(true, recorder("c")).
		Build()
	is.NoErr(err)
	is.Equal(p.IDs(), []string{"a", "b", "c"})
	is.Equal(p.String(), "a -> b -> c")

	tr := &trace{}
	res := p.Send(context.Background(), tr)
	is.Equal(res, Result{Outcome: Completed})
	is.Equal(strings.Join(tr.steps, ","), "a:before,b:before,c:before,c:after,b:after,a:after")
}

func TestPipe_ShortCircuit(t *testing.T) {
	is := is.New(t)

	wantErr := cerrors.New("provision failed")
	p, err := NewBuilder[*trace]().
		Use(recorder("a")).
		Use(Func("fail", func(context.Context, *trace, Next[*trace]) error {
			return wantErr
		})).
		Use(recorder("unreachable")).
		Build()
	is.NoErr(err)

	tr := &trace{}
	res := p.Send(context.Background(), tr)
	is.Equal(res.Outcome, Faulted)
	is.Equal(res.Err, wantErr)
	is.Equal(tr.steps, []string{"a:before", "a:after"})
}

func TestPipe_Panic(t *testing.T) {
	is := is.New(t)

	p, err := NewBuilder[*trace]().
		Use(Func("panic", func(context.Context, *trace, Next[*trace]) error {
			panic("boom")
		})).
		Build()
	is.NoErr(err)

	res := p.Send(context.Background(), &trace{})
	is.Equal(res.Outcome, Faulted)
	is.True(strings.Contains(res.Err.Error(), "boom"))
}

func TestPipe_Empty(t *testing.T) {
	is := is.New(t)

	p, err := NewBuilder[int]().Build()
	is.NoErr(err)
	is.Equal(p.Send(context.Background(), 1).Outcome, Completed)
	is.Equal(len(p.IDs()), 0)
}

func TestBuilder_Errors(t *testing.T) {
	is := is.New(t)

	_, err := NewBuilder[*trace]().
		Use(recorder("a")).
		Use(recorder("a")).
		Build()
	is.True(cerrors.Is(err, ErrDuplicateID))

	_, err = NewBuilder[*trace]().Use(nil).Build()
	is.True(cerrors.Is(err, ErrNilFilter))
}

func TestClassify(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	fault := cerrors.New("connection reset")

	testCases := []struct {
		name string
		ctx  context.Context
		err  error
		want Outcome
	}{
		{name: "no error", ctx: context.Background(), err: nil, want: Completed},
		{name: "no error canceled ctx", ctx: canceled, err: nil, want: Completed},
		{name: "fault", ctx: context.Background(), err: fault, want: Faulted},
		{name: "fault canceled ctx", ctx: canceled, err: fault, want: Cancelled},
		{name: "wrapped canceled", ctx: context.Background(), err: cerrors.Errorf("receive: %w", context.Canceled), want: Cancelled},
		{name: "deadline", ctx: context.Background(), err: context.DeadlineExceeded, want: Cancelled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			got := Classify(tc.ctx, tc.err)
			is.Equal(got.Outcome, tc.want)
			is.Equal(got.Err, tc.err)
		})
	}
}

func TestOutcome_String(t *testing.T) {
	is := is.New(t)
	is.Equal(Completed.String(), "completed")
	is.Equal(Cancelled.String(), "cancelled")
	is.Equal(Faulted.String(), "faulted")
}
