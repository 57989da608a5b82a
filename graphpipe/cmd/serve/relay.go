/*
 * Copyright 2025 GraphPipe Labs and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package serve

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/graphpipe-io/graphpipe/pubsub"
	"github.com/graphpipe-io/graphpipe/resolve"
	"github.com/graphpipe-io/graphpipe/schema"
)

// relayBackend is the execution engine of the standalone binary.  It is a
// pub/sub relay, not a data graph: the publish mutation fans a payload out
// on a channel, the subscribers query reports a channel's audience, and a
// subscription operation's root field names the channel it listens on.
// Embedders with a real execution engine supply their own resolve.Backend
// instead.
type relayBackend struct {
	registry *pubsub.Registry
}

// NewRelayBackend returns the pub/sub relay backend over registry.
func NewRelayBackend(registry *pubsub.Registry) resolve.Backend {
	rb := &relayBackend{registry: registry}
	return resolve.Backend{
		Executor:      rb,
		Subscriptions: rb,
	}
}

func (rb *relayBackend) Execute(
	ctx context.Context, req *schema.Request, op schema.Operation) *schema.Response {

	resp := &schema.Response{}

	for _, f := range op.Fields() {
		switch f.Name() {
		case "publish":
			channel, _ := f.ArgValue("channel").(string)
			payload, err := json.Marshal(f.ArgValue("payload"))
			if err != nil {
				resp.WithError(schema.GQLWrapf(err, "couldn't encode payload for channel %q", channel))
				resp.AddData([]byte(fmt.Sprintf("%q: false", f.ResponseName())))
				continue
			}
			rb.registry.Publish(channel, payload)
			resp.AddData([]byte(fmt.Sprintf("%q: true", f.ResponseName())))

		case "subscribers":
			channel, _ := f.ArgValue("channel").(string)
			resp.AddData([]byte(fmt.Sprintf("%q: %d",
				f.ResponseName(), rb.registry.Subscribers(channel))))

		default:
			resp.WithError(schema.GQLWrapf(
				errors.Errorf("the relay backend has no resolver for field %q", f.Name()),
				"couldn't resolve %s", f.ResponseName()))
		}
	}

	return resp
}

func (rb *relayBackend) Subscribe(
	ctx context.Context, req *schema.Request, op schema.Operation) (*pubsub.Subscriber, error) {

	fields := op.Fields()
	if len(fields) != 1 {
		return nil, errors.New("subscriptions must select exactly one channel field")
	}
	return rb.registry.Subscribe(fields[0].Name())
}
