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

package broker

import (
	"fmt"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
)

var (
	ErrAlreadyExists      = cerrors.New("already exists")
	ErrNotFound           = cerrors.New("not found")
	ErrSessionIdle        = cerrors.New("session idle")
	ErrNoSessionAvailable = cerrors.New("no session available")
	ErrClosed             = cerrors.New("closed")

	// ErrSessionsNotSupported is fatal, retrying can not fix a broker that
	// has no sessions.
	ErrSessionsNotSupported = cerrors.FatalError(cerrors.New("sessions not supported"))
)

// TransientKind classifies a transient failure.
type TransientKind int

const (
	// Busy means the broker asked the client to back off.
	Busy TransientKind = iota + 1
	// Timeout means an operation did not finish in time.
	Timeout
)

func (k TransientKind) String() string {
	switch k {
	case Busy:
		return "busy"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("transient(%d)", int(k))
	}
}

// TransientError is a failure that is expected to go away when the same
// operation is retried shortly after.
type TransientError struct {
	Kind TransientKind
	Err  error
}

// NewTransientError marks err as transient.
func NewTransientError(kind TransientKind, err error) error {
	return &TransientError{Kind: kind, Err: err}
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether any error in err's chain is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return cerrors.As(err, &te)
}

// TransientKindOf returns the kind of the first TransientError in err's chain.
func TransientKindOf(err error) (TransientKind, bool) {
	var te *TransientError
	if !cerrors.As(err, &te) {
		return 0, false
	}
	return te.Kind, true
}
