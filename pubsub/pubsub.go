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

// Package pubsub is the in-memory publish/subscribe core backing GraphQL
// subscriptions.  A Registry maps channel names to the set of live
// subscribers; a publish fans out to every subscriber registered at that
// moment and is otherwise dropped.  There is no persistence, no replay and
// no cross-process fan-out - a multi-instance deployment would back the same
// interface with an external message bus.
package pubsub

import (
	"encoding/json"
	"strings"
	"sync"
	"unicode"

	"github.com/graphpipe-io/graphpipe/x"
)

// A Registry is an explicitly constructed pub/sub hub, passed to the
// components that need it rather than living in a process-wide global.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[string]*Subscriber
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[string]*Subscriber),
	}
}

func validChannelName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// Subscribe registers a new subscriber on channel and returns its handle.
// The channel comes into existence on first subscribe.  The only failure
// mode is an invalid channel name.
func (r *Registry) Subscribe(channel string) (*Subscriber, error) {
	if !validChannelName(channel) {
		return nil, x.InvalidChannelError(channel)
	}

	sub := newSubscriber(r, channel)

	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.channels[channel]
	if !ok {
		subs = make(map[string]*Subscriber)
		r.channels[channel] = subs
	}
	subs[sub.id] = sub

	return sub, nil
}

// Publish enqueues payload to every subscriber currently registered on
// channel and returns without waiting for any consumer to read it.  With no
// subscribers the event is dropped - there is no channel-level buffering.
func (r *Registry) Publish(channel string, payload json.RawMessage) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.channels[channel] {
		// Unbounded queue, so this never blocks on a slow consumer.
		// Stop closes the queue only under the write lock, which this
		// read lock excludes, so the send can't race the close.
		sub.queue.In <- payload
	}
}

// Unsubscribe removes sub from its channel and stops delivery.  Idempotent.
func (r *Registry) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	sub.Stop()
}

// Subscribers returns the number of live subscribers on channel.
func (r *Registry) Subscribers(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}

// remove detaches sub and closes its queue, all under the write lock so no
// in-flight Publish can enqueue to a closed queue.
func (r *Registry) remove(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.channels[sub.channel]
	if ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(r.channels, sub.channel)
		}
	}
	close(sub.queue.In)
}
