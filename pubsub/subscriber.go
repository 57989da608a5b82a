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

package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/smallnest/chanx"
)

// A Subscriber is one consumer's live registration on a channel.  It owns a
// buffered delivery queue and is exclusively owned by the consuming
// request's lifetime.
//
// The queue is deliberately unbounded: a consumer slower than the publisher
// accumulates payloads per subscriber and the publisher is never
// backpressured.  That is an accepted tradeoff, not a defect - blocking a
// publish on the slowest subscriber would stall fan-out for everyone.
type Subscriber struct {
	id      string
	channel string
	reg     *Registry
	queue   *chanx.UnboundedChan[json.RawMessage]

	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	stopped bool
	cleanup []func()
}

const queueInitCapacity = 16

func newSubscriber(reg *Registry, channel string) *Subscriber {
	return &Subscriber{
		id:      uuid.New().String(),
		channel: channel,
		reg:     reg,
		queue:   chanx.NewUnboundedChan[json.RawMessage](context.Background(), queueInitCapacity),
		done:    make(chan struct{}),
	}
}

// ID returns the subscriber's unique id.
func (s *Subscriber) ID() string {
	return s.id
}

// Channel returns the channel name this subscriber is registered on.
func (s *Subscriber) Channel() string {
	return s.channel
}

// Next pulls the next payload, blocking until one is published, the
// subscriber is stopped, or ctx is cancelled.  Cancellation of ctx stops the
// subscriber, so a consumer that disconnects mid-pull still releases every
// resource registered with OnStop.  The second return is false once the
// sequence is over.
func (s *Subscriber) Next(ctx context.Context) (json.RawMessage, bool) {
	// A stopped subscriber yields nothing, even if payloads were queued
	// before the stop took effect.
	select {
	case <-s.done:
		return nil, false
	default:
	}

	select {
	case <-s.done:
		return nil, false
	case <-ctx.Done():
		s.Stop()
		return nil, false
	case payload, ok := <-s.queue.Out:
		if !ok {
			return nil, false
		}
		return payload, true
	}
}

// OnStop registers fn to run exactly once when the subscriber stops, on any
// exit path.  Producing resolvers register their timers and tickers here so
// nothing keeps firing after the consumer has gone away.  If the subscriber
// is already stopped, fn runs immediately.
func (s *Subscriber) OnStop(fn func()) {
	s.mu.Lock()
	if !s.stopped {
		s.cleanup = append(s.cleanup, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	runCleanup(fn)
}

// Stop deregisters the subscriber from its Registry, so publishes after
// this point never reach it, and then runs the cleanup callbacks in reverse
// registration order.  Idempotent and safe to call from any goroutine.
func (s *Subscriber) Stop() {
	s.stopOnce.Do(func() {
		s.reg.remove(s)

		s.mu.Lock()
		s.stopped = true
		fns := s.cleanup
		s.cleanup = nil
		s.mu.Unlock()

		close(s.done)

		// The queue's feeder goroutine exits only once its buffer is
		// flushed, so drain whatever was queued but never consumed.
		go func() {
			for range s.queue.Out {
			}
		}()

		for i := len(fns) - 1; i >= 0; i-- {
			runCleanup(fns[i])
		}
	})
}

// Stopped reports whether Stop has run.
func (s *Subscriber) Stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// A failing cleanup is logged, never re-thrown into the consumer path.
func runCleanup(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			glog.Errorf("panic during subscriber cleanup: %v", err)
		}
	}()
	fn()
}
