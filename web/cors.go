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
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// A CORSPolicy computes the Access-Control-Allow-Origin value for each
// request.  It is applied by the common-headers middleware, so every
// response carries it - plain JSON, multipart and event-stream framings
// alike.
type CORSPolicy struct {
	// AllowedOrigins is the static allowlist.  Empty means every origin is
	// allowed ("*").
	AllowedOrigins []string

	// Derive, if set, overrides AllowedOrigins and computes the allowed
	// origin from the request.  Returning "" denies the origin.
	Derive func(r *http.Request) string
}

// NewCORSPolicy validates origins and builds a static-allowlist policy.
func NewCORSPolicy(origins []string) (*CORSPolicy, error) {
	for _, origin := range origins {
		if _, err := url.Parse(origin); err != nil {
			return nil, errors.Wrapf(err, "invalid CORS origin %q", origin)
		}
	}
	return &CORSPolicy{AllowedOrigins: origins}, nil
}

// Origin returns the Access-Control-Allow-Origin value for r and whether
// CORS headers should be set at all.  A nil policy allows every origin.
func (p *CORSPolicy) Origin(r *http.Request) (string, bool) {
	if p == nil {
		return "*", true
	}

	if p.Derive != nil {
		origin := p.Derive(r)
		return origin, origin != ""
	}

	if len(p.AllowedOrigins) == 0 {
		return "*", true
	}

	requestOrigin := r.Header.Get("Origin")
	for _, origin := range p.AllowedOrigins {
		if origin == "*" || origin == requestOrigin {
			return requestOrigin, requestOrigin != ""
		}
	}
	return "", false
}
