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

// Package retry runs operations until they succeed, fail permanently or the
// caller gives up. Delays between attempts are produced by a Policy.
package retry

import (
	"time"

	"github.com/jpillora/backoff"
)

// Policy creates a fresh Stepper for each run, so a policy value can be shared
// between goroutines and reused.
type Policy interface {
	NewStepper() Stepper
}

// Stepper produces the delays of a single run.
type Stepper interface {
	// Next returns the delay before the next attempt. The boolean is false
	// once the policy does not allow any more attempts.
	Next() (time.Duration, bool)
	// Attempt returns the number of delays produced so far.
	Attempt() int
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func() Stepper

func (f PolicyFunc) NewStepper() Stepper { return f() }

const (
	DefaultExponentialMin    = time.Millisecond * 100
	DefaultExponentialMax    = time.Second * 30
	DefaultExponentialFactor = 2
)

// Exponential is a policy where each delay is Factor times the previous one,
// starting at Min and capped at Max. Limit caps the number of retries, 0 means
// unlimited. Without Jitter the produced delays never decrease.
type Exponential struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter bool
	Limit  int
}

func (e Exponential) NewStepper() Stepper {
	b := &backoff.Backoff{
		Min:    e.Min,
		Max:    e.Max,
		Factor: e.Factor,
		Jitter: e.Jitter,
	}
	if b.Min <= 0 {
		b.Min = DefaultExponentialMin
	}
	if b.Max <= 0 {
		b.Max = DefaultExponentialMax
	}
	if b.Max < b.Min {
		b.Max = b.Min
	}
	if b.Factor <= 0 {
		b.Factor = DefaultExponentialFactor
	}
	return &exponentialStepper{b: b, limit: e.Limit}
}

type exponentialStepper struct {
	b     *backoff.Backoff
	limit int
}

func (s *exponentialStepper) Next() (time.Duration, bool) {
	if s.limit > 0 && s.Attempt() >= s.limit {
		return 0, false
	}
	return s.b.Duration(), true
}

func (s *exponentialStepper) Attempt() int {
	return int(s.b.Attempt())
}

// DefaultIntervals are used by Intervals when no intervals are configured.
var DefaultIntervals = []time.Duration{
	time.Millisecond * 50,
	time.Millisecond * 100,
	time.Millisecond * 500,
	time.Second,
	time.Second * 5,
	time.Second * 10,
}

// Intervals is a policy with a fixed list of delays. Once the list is
// exhausted the last delay is repeated indefinitely.
type Intervals struct {
	Intervals []time.Duration
}

func (p Intervals) NewStepper() Stepper {
	intervals := p.Intervals
	if len(intervals) == 0 {
		intervals = DefaultIntervals
	}
	return &intervalStepper{intervals: intervals}
}

type intervalStepper struct {
	intervals []time.Duration
	attempt   int
}

func (s *intervalStepper) Next() (time.Duration, bool) {
	i := min(s.attempt, len(s.intervals)-1)
	s.attempt++
	return s.intervals[i], true
}

func (s *intervalStepper) Attempt() int {
	return s.attempt
}
