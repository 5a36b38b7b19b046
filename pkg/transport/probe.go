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
	"github.com/conduitio/conduit-subscriber/pkg/foundation/cerrors"
	"github.com/goccy/go-json"
)

// ProbeResult describes the static configuration of a transport for
// monitoring tools.
type ProbeResult struct {
	BrokerKind            string   `json:"brokerKind"`
	TopicPath             string   `json:"topicPath"`
	Subscription          string   `json:"subscription"`
	Address               string   `json:"address"`
	PrefetchCount         int      `json:"prefetchCount"`
	MaxConcurrentCalls    int      `json:"maxConcurrentCalls"`
	RequiresSession       bool     `json:"requiresSession"`
	MaxConcurrentSessions int      `json:"maxConcurrentSessions,omitempty"`
	Filters               []string `json:"filters"`
	State                 string   `json:"state"`
}

// Probe returns the configuration of the transport. It has no side effects
// and can be called at any time.
func (t *ReceiveTransport) Probe() ProbeResult {
	kind := t.settings.BrokerKind
	if kind == "" {
		kind = t.connector.Kind()
	}
	res := ProbeResult{
		BrokerKind:         kind,
		TopicPath:          t.settings.TopicPath,
		Subscription:       t.settings.TopicPath + "/Subscriptions/" + t.settings.SubscriptionName,
		Address:            t.address.String(),
		PrefetchCount:      t.settings.PrefetchCount,
		MaxConcurrentCalls: t.settings.MaxConcurrentCalls,
		RequiresSession:    t.settings.RequiresSession,
		Filters:            t.pipe.IDs(),
		State:              t.State().String(),
	}
	if t.settings.RequiresSession {
		res.MaxConcurrentSessions = t.settings.MaxConcurrentSessions
	}
	return res
}

// MarshalProbe returns the JSON encoding of the probe result.
func (t *ReceiveTransport) MarshalProbe() ([]byte, error) {
	b, err := json.Marshal(t.Probe())
	if err != nil {
		return nil, cerrors.Errorf("could not marshal probe result: %w", err)
	}
	return b, nil
}
