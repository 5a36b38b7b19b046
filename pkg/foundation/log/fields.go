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

const (
	ComponentField = "component"
	AttemptField   = "attempt"
	DurationField  = "duration"
	ReasonField    = "reason"
	StateField     = "state"
	TaskField      = "task"

	AddressField       = "transport_address"
	BrokerField        = "broker"
	ConnectionIDField  = "connection_id"
	DeliveryCountField = "delivery_count"
	FilterIDField      = "filter_id"
	MessageIDField     = "message_id"
	SessionIDField     = "session_id"
	SubjectField       = "subject"
	SubscriptionField  = "subscription_name"
	TopicField         = "topic_path"
	WorkerIDField      = "worker_id"
)
