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
	"context"
	"net/http"
	"runtime/debug"

	"github.com/golang/glog"
)

// DefaultHealthPath is where liveness is served unless configured otherwise.
const DefaultHealthPath = "/health"

// A ReadyState is the answer of a readiness check: either ready, or not
// ready with an optional reason for the 503 body.
type ReadyState struct {
	Ready  bool
	Reason string
}

// A ReadyFunc is the external collaborator's readiness predicate.
type ReadyFunc func(ctx context.Context) ReadyState

// HealthHandler answers liveness probes: 200 with an empty body whenever
// the process is up.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

// ReadinessHandler answers readiness probes by consulting check: ready maps
// to 200, not ready to 503 with the reason as a plaintext body.  A panic in
// the predicate counts as not ready; the diagnostic is logged, never sent
// to the prober.
func ReadinessHandler(check ReadyFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := runReadyCheck(r.Context(), check)

		if state.Ready {
			w.WriteHeader(http.StatusOK)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		if state.Reason != "" {
			if _, err := w.Write([]byte(state.Reason)); err != nil {
				glog.Error(err)
			}
		}
	})
}

func runReadyCheck(ctx context.Context, check ReadyFunc) (state ReadyState) {
	if check == nil {
		return ReadyState{Ready: true}
	}

	defer func() {
		if err := recover(); err != nil {
			glog.Errorf("panic in readiness check: %v\n trace: %s", err, string(debug.Stack()))
			state = ReadyState{Ready: false}
		}
	}()

	return check(ctx)
}
