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

package retry

import (
	"context"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
)

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	// Number is the 1-based number of the failed attempt.
	Number int
	// Delay is the time Run waits before the next attempt.
	Delay time.Duration
	// Err is the error returned by the failed attempt.
	Err error
}

type options struct {
	retryable func(error) bool
	onRetry   func(Attempt)
	reset     func() bool
}

type Option func(*options)

// WithClassifier sets the function deciding if an error is worth retrying.
// By default every error is retried except fatal errors.
func WithClassifier(retryable func(error) bool) Option {
	return func(o *options) {
		o.retryable = retryable
	}
}

// WithOnRetry registers a function that is called before every wait.
func WithOnRetry(f func(Attempt)) Option {
	return func(o *options) {
		o.onRetry = f
	}
}

// WithReset registers a function that is called after every retryable
// failure. If it returns true the failed attempt made progress before it
// failed and the next delay is taken from a fresh Stepper.
func WithReset(f func() bool) Option {
	return func(o *options) {
		o.reset = f
	}
}

// Retryable is the default classifier, it reports false only for fatal
// errors.
func Retryable(err error) bool {
	return !cerrors.IsFatalError(err)
}

// Run calls op until it succeeds. Between attempts it waits for the delay
// produced by policy. Run returns:
//   - nil when op succeeds,
//   - nil when ctx is done, cancellation is not treated as a failure,
//   - the error of op as soon as it is classified as not retryable, without
//     waiting,
//   - an error wrapping the last failure once policy stops producing delays.
func Run(ctx context.Context, policy Policy, op func(context.Context) error, opts ...Option) error {
	o := options{retryable: Retryable}
	for _, opt := range opts {
		opt(&o)
	}

	stepper := policy.NewStepper()
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return nil
		}
		err := op(ctx)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return nil
		case !o.retryable(err):
			return err
		}

		if o.reset != nil && o.reset() {
			stepper = policy.NewStepper()
		}
		delay, ok := stepper.Next()
		if !ok {
			return cerrors.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		if o.onRetry != nil {
			o.onRetry(Attempt{Number: attempt, Delay: delay, Err: err})
		}
		if Sleep(ctx, delay) != nil {
			return nil
		}
	}
}

// Sleep waits for d or until ctx is done, in which case it returns the
// context error.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
