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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"))
}

// nextWithin pulls the next payload with a deadline so a broken delivery path
// fails the test instead of hanging it.
func nextWithin(t *testing.T, sub *Subscriber, d time.Duration) (json.RawMessage, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return sub.Next(ctx)
}

func TestPublishWithoutSubscribersIsDropped(t *testing.T) {
	reg := NewRegistry()

	reg.Publish("newLink", json.RawMessage(`{"newLink": {"id": "1"}}`))

	sub, err := reg.Subscribe("newLink")
	require.NoError(t, err)
	defer sub.Stop()

	// The event published before the subscription must not be replayed.
	payload, ok := nextWithin(t, sub, 50*time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, payload)
}

func TestSubscriberReceivesPublishedPayload(t *testing.T) {
	reg := NewRegistry()

	sub, err := reg.Subscribe("newLink")
	require.NoError(t, err)
	defer sub.Stop()

	want := json.RawMessage(`{"newLink": {"id": "1", "url": "http://example.com"}}`)
	reg.Publish("newLink", want)

	payload, ok := nextWithin(t, sub, time.Second)
	require.True(t, ok)
	assert.JSONEq(t, string(want), string(payload))

	// Exactly once: nothing further is pending.
	_, ok = nextWithin(t, sub, 50*time.Millisecond)
	assert.False(t, ok)
}

func TestEverySubscriberOnChannelReceives(t *testing.T) {
	reg := NewRegistry()

	var subs []*Subscriber
	for i := 0; i < 3; i++ {
		sub, err := reg.Subscribe("newLink")
		require.NoError(t, err)
		defer sub.Stop()
		subs = append(subs, sub)
	}
	other, err := reg.Subscribe("otherChannel")
	require.NoError(t, err)
	defer other.Stop()

	require.Equal(t, 3, reg.Subscribers("newLink"))
	reg.Publish("newLink", json.RawMessage(`{"newLink": {"id": "1"}}`))

	for _, sub := range subs {
		payload, ok := nextWithin(t, sub, time.Second)
		require.True(t, ok)
		assert.JSONEq(t, `{"newLink": {"id": "1"}}`, string(payload))
	}

	// A subscriber on a different channel sees nothing.
	_, ok := nextWithin(t, other, 50*time.Millisecond)
	assert.False(t, ok)
}

func TestInvalidChannelNames(t *testing.T) {
	reg := NewRegistry()

	for _, name := range []string{"", "   ", "\t\n", "bad\x00name", "bad\nname"} {
		_, err := reg.Subscribe(name)
		require.Error(t, err, "channel name %q must be rejected", name)
	}
}

func TestStopEndsDelivery(t *testing.T) {
	reg := NewRegistry()

	sub, err := reg.Subscribe("newLink")
	require.NoError(t, err)

	sub.Stop()
	require.Equal(t, 0, reg.Subscribers("newLink"))
	assert.True(t, sub.Stopped())

	reg.Publish("newLink", json.RawMessage(`{"newLink": {"id": "1"}}`))
	_, ok := nextWithin(t, sub, 50*time.Millisecond)
	assert.False(t, ok, "a stopped subscriber yields nothing")

	// Stop and Unsubscribe are both idempotent.
	sub.Stop()
	reg.Unsubscribe(sub)
	reg.Unsubscribe(nil)
}

func TestStopDiscardsQueuedPayloads(t *testing.T) {
	reg := NewRegistry()

	sub, err := reg.Subscribe("newLink")
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		reg.Publish("newLink", json.RawMessage(`{"newLink": {"id": "1"}}`))
	}
	sub.Stop()

	_, ok := nextWithin(t, sub, 50*time.Millisecond)
	assert.False(t, ok)
}

func TestNextUnblocksOnStop(t *testing.T) {
	reg := NewRegistry()

	sub, err := reg.Subscribe("newLink")
	require.NoError(t, err)

	done := make(chan bool)
	go func() {
		_, ok := sub.Next(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	sub.Stop()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Next didn't return after Stop")
	}
}

func TestContextCancellationStopsSubscriber(t *testing.T) {
	reg := NewRegistry()

	sub, err := reg.Subscribe("newLink")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		_, ok := sub.Next(ctx)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Next didn't return after context cancellation")
	}

	assert.True(t, sub.Stopped(), "cancellation must stop the subscriber")
	assert.Equal(t, 0, reg.Subscribers("newLink"))
}

func TestOnStopRunsOnceInReverseOrder(t *testing.T) {
	reg := NewRegistry()

	sub, err := reg.Subscribe("newLink")
	require.NoError(t, err)

	var order []string
	sub.OnStop(func() { order = append(order, "first") })
	sub.OnStop(func() { order = append(order, "second") })

	sub.Stop()
	sub.Stop()

	assert.Equal(t, []string{"second", "first"}, order)
}

func TestOnStopAfterStopRunsImmediately(t *testing.T) {
	reg := NewRegistry()

	sub, err := reg.Subscribe("newLink")
	require.NoError(t, err)
	sub.Stop()

	ran := false
	sub.OnStop(func() { ran = true })
	assert.True(t, ran)
}

func TestOnStopPanicIsContained(t *testing.T) {
	reg := NewRegistry()

	sub, err := reg.Subscribe("newLink")
	require.NoError(t, err)

	ran := false
	sub.OnStop(func() { ran = true })
	sub.OnStop(func() { panic("cleanup gone wrong") })

	require.NotPanics(t, sub.Stop)
	assert.True(t, ran, "cleanups after the panicking one still run")
}

func TestOnStopReleasesTicker(t *testing.T) {
	reg := NewRegistry()

	sub, err := reg.Subscribe("newLink")
	require.NoError(t, err)

	ticker := time.NewTicker(time.Millisecond)
	sub.OnStop(ticker.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, ok := sub.Next(ctx)
	assert.False(t, ok)
	assert.True(t, sub.Stopped())
}

func TestConcurrentPublishSubscribeStop(t *testing.T) {
	reg := NewRegistry()
	payload := json.RawMessage(`{"newLink": {"id": "1"}}`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Publish("newLink", payload)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				sub, err := reg.Subscribe("newLink")
				if err != nil {
					t.Error(err)
					return
				}
				ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
				sub.Next(ctx)
				cancel()
				sub.Stop()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Subscribers("newLink"))
}
