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

package resolve

import (
	"context"
	"io"
	"sync"

	"github.com/graphpipe-io/graphpipe/schema"
)

// A ResultStream is an ordered sequence of response frames for one
// operation: one initial frame, zero or more patch frames, with the last
// frame carrying hasNext false.
//
// Next blocks until the next frame is ready and returns io.EOF once the
// sequence is exhausted.  Close releases whatever resources the producer
// holds; it must be safe to call at any time, any number of times, and the
// consumer must call it on every exit path, especially when abandoning the
// stream before its terminal frame.
type ResultStream interface {
	Next(ctx context.Context) (*schema.Response, error)
	Close()
}

type frameStream struct {
	frames []*schema.Response
	idx    int

	closeOnce sync.Once
	onClose   func()
}

// Frames builds a ResultStream from a fixed sequence of frames.  It's the
// degenerate producer used for single-result operations requested over an
// incremental transport, and it's handy in tests.
func Frames(frames ...*schema.Response) ResultStream {
	return &frameStream{frames: frames}
}

// FramesWithCleanup is Frames with a cleanup function invoked once on Close.
func FramesWithCleanup(onClose func(), frames ...*schema.Response) ResultStream {
	return &frameStream{frames: frames, onClose: onClose}
}

func (fs *frameStream) Next(_ context.Context) (*schema.Response, error) {
	if fs.idx >= len(fs.frames) {
		return nil, io.EOF
	}
	frame := fs.frames[fs.idx]
	fs.idx++
	return frame, nil
}

func (fs *frameStream) Close() {
	fs.closeOnce.Do(func() {
		if fs.onClose != nil {
			fs.onClose()
		}
	})
}

// singleFrame wraps one terminal response as a complete sequence.
func singleFrame(resp *schema.Response) ResultStream {
	return Frames(resp.WithHasNext(false))
}
