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
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

type sessionCtxKey struct{}

func sessionHook(ctx context.Context, e *zerolog.Event, _ zerolog.Level) {
	if id, ok := ctx.Value(sessionCtxKey{}).(string); ok {
		e.Str(SessionIDField, id)
	}
}

func TestCtxLogger(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		logfunc func(CtxLogger)
		want    string
	}{{
		name: "log empty",
		logfunc: func(logger CtxLogger) {
			logger.Log(ctx).Msg("")
		},
		want: `^{}\n$`,
	}, {
		name: "trace one-field",
		logfunc: func(logger CtxLogger) {
			logger.Trace(ctx).Str("foo", "bar").Msg("")
		},
		want: `^{"level":"trace","foo":"bar"}\n$`,
	}, {
		name: "debug two-field",
		logfunc: func(logger CtxLogger) {
			logger.Debug(ctx).
				Str("foo", "bar").
				Int("n", 123).
				Msg("")
		},
		want: `^{"level":"debug","foo":"bar","n":123}\n$`,
	}, {
		name: "info with component",
		logfunc: func(logger CtxLogger) {
			logger.WithComponent("transport").Info(ctx).Msg("started")
		},
		want: `^{"level":"info","component":"transport","message":"started"}\n$`,
	}, {
		name: "warn",
		logfunc: func(logger CtxLogger) {
			logger.Warn(ctx).Msg("")
		},
		want: `^{"level":"warn"}\n$`,
	}, {
		name: "err with error",
		logfunc: func(logger CtxLogger) {
			logger.Err(ctx, cerrors.New("foo")).Msg("")
		},
		want: `^{"level":"error","stack":\[{"func":"github.com/conduitio/conduit-subscriber/pkg/foundation/log.TestCtxLogger.func\d*","file":".*/pkg/foundation/log/ctxlogger_test.go","line":\d*}\],"error":"foo"}\n$`,
	}, {
		name: "err without error",
		logfunc: func(logger CtxLogger) {
			logger.Err(ctx, nil).Str("foo", "bar").Msg("")
		},
		want: `^{"level":"info","foo":"bar"}\n$`,
	}, {
		name: "with level",
		logfunc: func(logger CtxLogger) {
			logger.WithLevel(ctx, zerolog.WarnLevel).Int("n", 1).Msg("")
		},
		want: `^{"level":"warn","n":1}\n$`,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			logger := New(zerolog.New(&out).With().Stack().Logger())
			tc.logfunc(logger)
			got := out.String()
			matched, err := regexp.MatchString(tc.want, got)
			if !matched || err != nil {
				t.Errorf("invalid log output:\ngot:  %v\nwant: %v", got, tc.want)
			}
		})
	}
}

func TestCtxLoggerWithHooks(t *testing.T) {
	is := is.New(t)

	var out bytes.Buffer
	logger := New(zerolog.New(&out)).
		WithComponent("receiver").
		CtxHook(CtxHookFunc(sessionHook))

	ctx := context.WithValue(context.Background(), sessionCtxKey{}, "s1")
	logger.Info(ctx).Str(MessageIDField, "m1").Msg("")
	logger.Info(context.Background()).Msg("")

	is.Equal(out.String(),
		`{"level":"info","component":"receiver","session_id":"s1","message_id":"m1"}`+"\n"+
			`{"level":"info","component":"receiver"}`+"\n")
}

func TestCtxLoggerHookDoesNotLeak(t *testing.T) {
	is := is.New(t)

	var out bytes.Buffer
	base := New(zerolog.New(&out))
	_ = base.CtxHook(CtxHookFunc(func(_ context.Context, e *zerolog.Event, _ zerolog.Level) {
		e.Bool("hooked", true)
	}))

	base.Info(context.Background()).Msg("")
	is.Equal(out.String(), `{"level":"info"}`+"\n")
}

func TestDisabledEvent(t *testing.T) {
	var out bytes.Buffer
	logger := New(zerolog.New(&out).Level(zerolog.WarnLevel))
	logger = logger.CtxHook(CtxHookFunc(func(ctx context.Context, e *zerolog.Event, l zerolog.Level) {
		t.Fatal("did not expect ctx hook to be called")
	}))
	logger.Info(context.Background()).Msg("this log should not be written")
	if got, want := out.String(), ""; got != want {
		t.Errorf("invalid log output:\ngot:  %v\nwant: %v", got, want)
	}
}

func TestParseFormat(t *testing.T) {
	testCases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "json", want: FormatJSON},
		{in: "cli", want: FormatCLI},
		{in: " JSON ", want: FormatJSON},
		{in: "xml", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			is := is.New(t)
			got, err := ParseFormat(tc.in)
			if tc.wantErr {
				is.True(err != nil)
				return
			}
			is.NoErr(err)
			is.Equal(got, tc.want)
			is.Equal(got.String(), strings.ToLower(strings.TrimSpace(tc.in)))
		})
	}
}

func TestFormatWriter(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer
	is.Equal(FormatJSON.Writer(&buf), io.Writer(&buf))

	logger := zerolog.New(FormatCLI.Writer(&buf))
	logger.Info().Str("topic_path", "orders").Msg("hello")
	is.True(strings.Contains(buf.String(), "hello"))
	is.True(strings.Contains(buf.String(), "topic_path="))
	is.True(!strings.Contains(buf.String(), "{"))
}
