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

package transport

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestSettings_WithDefaults(t *testing.T) {
	is := is.New(t)

	got := Settings{TopicPath: testTopic, SubscriptionName: testSub}.WithDefaults()
	is.Equal(got.MaxConcurrentCalls, 1)
	is.Equal(got.PrefetchCount, 2)
	is.Equal(got.MaxConcurrentSessions, 1)
	is.Equal(got.SessionIdleTimeout, DefaultSessionIdleTimeout)

	got = Settings{MaxConcurrentCalls: 4, PrefetchCount: 10, SessionIdleTimeout: time.Second}.WithDefaults()
	is.Equal(got.MaxConcurrentCalls, 4)
	is.Equal(got.PrefetchCount, 10)
	is.Equal(got.MaxConcurrentSessions, 4)
	is.Equal(got.SessionIdleTimeout, time.Second)
}

func TestSettings_Validate(t *testing.T) {
	testCases := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{{
		name:     "valid",
		settings: Settings{TopicPath: testTopic, SubscriptionName: testSub},
	}, {
		name:     "missing topic",
		settings: Settings{SubscriptionName: testSub},
		wantErr:  true,
	}, {
		name:     "missing subscription",
		settings: Settings{TopicPath: testTopic},
		wantErr:  true,
	}, {
		name:     "negative prefetch",
		settings: Settings{TopicPath: testTopic, SubscriptionName: testSub, PrefetchCount: -1},
		wantErr:  true,
	}, {
		name:     "negative concurrency",
		settings: Settings{TopicPath: testTopic, SubscriptionName: testSub, MaxConcurrentCalls: -2},
		wantErr:  true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			err := tc.settings.Validate()
			is.Equal(err != nil, tc.wantErr)
		})
	}
}

func TestNewAddress(t *testing.T) {
	is := is.New(t)

	got, err := NewAddress("sb://ns.example.com/", "orders", "billing")
	is.NoErr(err)
	is.Equal(got, Address("sb://ns.example.com/orders/Subscriptions/billing"))

	got, err = NewAddress("nats://localhost:4222/root", "orders/eu", "billing")
	is.NoErr(err)
	is.Equal(got.String(), "nats://localhost:4222/root/orders/eu/Subscriptions/billing")

	_, err = NewAddress("localhost", "orders", "billing")
	is.True(err != nil)
}
