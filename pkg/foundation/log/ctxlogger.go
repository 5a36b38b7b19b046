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

package log

import (
	"context"
	"os"
	"testing"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.ErrorStackMarshaler = cerrors.GetStackTrace
}

// CtxHook is a hook that is triggered when an event is created through a
// CtxLogger. It can extract values from the context and attach them to the
// event.
type CtxHook interface {
	Run(ctx context.Context, e *zerolog.Event, l zerolog.Level)
}

// CtxHookFunc is an adapter allowing the use of an ordinary function as a
// CtxHook.
type CtxHookFunc func(ctx context.Context, e *zerolog.Event, l zerolog.Level)

// Run calls f(ctx, e, l).
func (f CtxHookFunc) Run(ctx context.Context, e *zerolog.Event, l zerolog.Level) {
	f(ctx, e, l)
}

// CtxLogger is a wrapper around a zerolog.Logger which adds support for adding
// context hooks to it. All methods that return *zerolog.Event are switched for
// versions that take a context and trigger context hooks before returning the
// entry.
type CtxLogger struct {
	zerolog.Logger
	hooks []CtxHook
	// component is attached to all messages and can be replaced
	component string
}

// New creates a new CtxLogger with the supplied zerolog.Logger.
func New(logger zerolog.Logger) CtxLogger {
	return CtxLogger{Logger: logger}
}

// Nop returns a disabled logger for which all operation are no-op.
func Nop() CtxLogger {
	return CtxLogger{Logger: zerolog.Nop()}
}

// Test returns a test logger that writes to the supplied testing.TB.
func Test(t testing.TB) CtxLogger {
	return CtxLogger{Logger: zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)}
}

// InitLogger returns a logger writing to stdout with the wanted level and
// format.
func InitLogger(level zerolog.Level, f Format) CtxLogger {
	logger := zerolog.New(f.Writer(os.Stdout)).
		With().
		Timestamp().
		Stack().
		Logger().
		Level(level)

	return New(logger)
}

// CtxHook returns a logger with the h CtxHooks. The hooks are executed in the
// order in which they were added.
func (l CtxLogger) CtxHook(h ...CtxHook) CtxLogger {
	hooks := make([]CtxHook, 0, len(l.hooks)+len(h))
	hooks = append(hooks, l.hooks...)
	l.hooks = append(hooks, h...)
	return l
}

// WithComponent adds the component to the output. This function can be called
// multiple times with the same value and it will produce the same result. If
// component is an empty string then nothing will be added to the output.
func (l CtxLogger) WithComponent(component string) CtxLogger {
	l.component = component
	return l
}

func (l CtxLogger) Component() string {
	return l.component
}

// Trace starts a new message with trace level and context ctx.
//
// You must call Msg on the returned event in order to send the event.
func (l CtxLogger) Trace(ctx context.Context) *zerolog.Event {
	return l.runHooks(ctx, l.Logger.Trace(), zerolog.TraceLevel)
}

// Debug starts a new message with debug level and context ctx.
//
// You must call Msg on the returned event in order to send the event.
func (l CtxLogger) Debug(ctx context.Context) *zerolog.Event {
	return l.runHooks(ctx, l.Logger.Debug(), zerolog.DebugLevel)
}

// Info starts a new message with info level and context ctx.
//
// You must call Msg on the returned event in order to send the event.
func (l CtxLogger) Info(ctx context.Context) *zerolog.Event {
	return l.runHooks(ctx, l.Logger.Info(), zerolog.InfoLevel)
}

// Warn starts a new message with warn level and context ctx.
//
// You must call Msg on the returned event in order to send the event.
func (l CtxLogger) Warn(ctx context.Context) *zerolog.Event {
	return l.runHooks(ctx, l.Logger.Warn(), zerolog.WarnLevel)
}

// Error starts a new message with error level and context ctx.
//
// You must call Msg on the returned event in order to send the event.
func (l CtxLogger) Error(ctx context.Context) *zerolog.Event {
	return l.runHooks(ctx, l.Logger.Error(), zerolog.ErrorLevel)
}

// Err starts a new message with context ctx and error level with err as a field
// if not nil or with info level if err is nil.
//
// You must call Msg on the returned event in order to send the event.
func (l CtxLogger) Err(ctx context.Context, err error) *zerolog.Event {
	lvl := zerolog.InfoLevel
	if err != nil {
		lvl = zerolog.ErrorLevel
	}
	return l.runHooks(ctx, l.Logger.Err(err), lvl)
}

// Fatal starts a new message with fatal level and context ctx. The os.Exit(1)
// function is called by the Msg method, which terminates the program
// immediately.
//
// You must call Msg on the returned event in order to send the event.
func (l CtxLogger) Fatal(ctx context.Context) *zerolog.Event {
	return l.runHooks(ctx, l.Logger.Fatal(), zerolog.FatalLevel)
}

// Panic starts a new message with panic level and context ctx. The panic()
// function is called by the Msg method, which stops the ordinary flow of a
// goroutine.
//
// You must call Msg on the returned event in order to send the event.
func (l CtxLogger) Panic(ctx context.Context) *zerolog.Event {
	return l.runHooks(ctx, l.Logger.Panic(), zerolog.PanicLevel)
}

// WithLevel starts a new message with level and context ctx. Unlike Fatal and
// Panic methods, WithLevel does not terminate the program or stop the ordinary
// flow of a goroutine when used with their respective levels.
//
// You must call Msg on the returned event in order to send the event.
func (l CtxLogger) WithLevel(ctx context.Context, level zerolog.Level) *zerolog.Event {
	return l.runHooks(ctx, l.Logger.WithLevel(level), level)
}

// Log starts a new message with no level and context ctx. Setting GlobalLevel
// to Disabled will still disable events produced by this method.
//
// You must call Msg on the returned event in order to send the event.
func (l CtxLogger) Log(ctx context.Context) *zerolog.Event {
	return l.runHooks(ctx, l.Logger.Log(), zerolog.NoLevel)
}

func (l CtxLogger) runHooks(ctx context.Context, e *zerolog.Event, lvl zerolog.Level) *zerolog.Event {
	if !e.Enabled() {
		return e
	}
	e = e.Ctx(ctx)
	if l.component != "" {
		e.Str(ComponentField, l.component)
	}
	for _, h := range l.hooks {
		h.Run(ctx, e, lvl)
	}
	return e
}
