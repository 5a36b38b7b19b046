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
	"io"
	"strings"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/rs/zerolog"
)

// Format selects how log entries are written.
type Format int

const (
	// FormatCLI writes human readable lines, meant for a terminal.
	FormatCLI Format = iota
	// FormatJSON writes one JSON object per entry.
	FormatJSON
)

var formatNames = map[Format]string{
	FormatCLI:  "cli",
	FormatJSON: "json",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParseFormat returns the Format named by s, ignoring case and surrounding
// whitespace.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return -1, cerrors.Errorf("unsupported log format %q", s)
}

// Writer wraps out so entries are written in format f.
func (f Format) Writer(out io.Writer) io.Writer {
	if f != FormatCLI {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
}
