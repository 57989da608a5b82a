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

package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/graphpipe-io/graphpipe/schema"
	"github.com/graphpipe-io/graphpipe/x"
)

// serveSSE maps a subscription's payload sequence onto a text/event-stream
// response: one "data: <json>\n\n" frame per payload, with optional
// keep-alive comments in between.  There are no event ids and no resume
// semantics - a reconnecting client starts a fresh subscription.
//
// Client disconnect is observed through the request context; it stops the
// subscriber, which releases every resolver-held resource, and the response
// just ends.
func (gh *graphqlHandler) serveSSE(w http.ResponseWriter, r *http.Request, gqlReq *schema.Request) {
	ctx := r.Context()

	sub, err := gh.resolver.ResolveSubscription(ctx, gqlReq)
	if err != nil {
		// A structural failure, like an invalid channel name, carries its
		// own HTTP status.  Anything else is a GraphQL error in a 200 body.
		if re, ok := err.(*x.RequestError); ok {
			writeRequestError(w, re)
			return
		}
		write(w, schema.ErrorResponse(err), false)
		return
	}
	defer sub.Stop()

	flusher, ok := w.(http.Flusher)
	if !ok {
		write(w, schema.ErrorResponsef("Subscriptions aren't supported on this connection."), false)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Pull in a separate goroutine so keep-alives go out while the
	// subscriber sits idle.  The goroutine unblocks on ctx cancellation or
	// on Stop, both of which end Next.
	payloads := make(chan json.RawMessage)
	go func() {
		defer close(payloads)
		for {
			payload, ok := sub.Next(ctx)
			if !ok {
				return
			}
			select {
			case payloads <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	var keepAlive <-chan time.Time
	if gh.opts.SSEKeepAlive > 0 {
		ticker := time.NewTicker(gh.opts.SSEKeepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-keepAlive:
			if _, err := fmt.Fprint(w, ":\n\n"); err != nil {
				glog.V(2).Infof("sse keep-alive write failed: %v", err)
				return
			}
			flusher.Flush()

		case payload, ok := <-payloads:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				glog.V(2).Infof("sse write failed, stopping subscription: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
