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

package transport_test

import (
	"context"
	"fmt"
	"time"

	"github.com/conduitio/conduit-subscriber/pkg/broker"
	"github.com/conduitio/conduit-subscriber/pkg/broker/memory"
	"github.com/conduitio/conduit-subscriber/pkg/foundation/log"
	"github.com/conduitio/conduit-subscriber/pkg/transport"
	"github.com/rs/zerolog"
)

func ExampleReceiveTransport() {
	logger := log.InitLogger(zerolog.WarnLevel, log.FormatJSON)

	b := memory.New()
	b.CreateSubscription("orders", "billing", false)
	b.Publish("orders", broker.Message{ID: "o-1", Body: []byte(`{"total":42}`)})

	tr, err := transport.New(logger, b, "mem://local", transport.Settings{
		TopicPath:          "orders",
		SubscriptionName:   "billing",
		MaxConcurrentCalls: 4,
	})
	if err != nil {
		panic(err)
	}

	done := make(chan struct{})
	h, err := tr.Start(transport.HandlerFunc(func(_ context.Context, rc *transport.ReceiveContext) error {
		fmt.Printf("%s: %s\n", rc.Message.ID, rc.Message.Body)
		close(done)
		return nil
	}))
	if err != nil {
		panic(err)
	}
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	if err := h.Stop(ctx); err != nil {
		panic(err)
	}
	fmt.Println(tr.State())

	// Output:
	// o-1: {"total":42}
	// stopped
}
