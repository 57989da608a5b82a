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

package x

import (
	"net/http"
)

const (
	// AccessControlAllowedHeaders is the list of allowed headers returned in
	// a CORS preflight response.
	AccessControlAllowedHeaders = "X-Requested-With, Content-Type, Accept, Accept-Encoding"
)

// AddCorsHeaders adds the CORS headers to an HTTP response.  origin is what
// goes into Access-Control-Allow-Origin; callers that restrict origins pass
// the request origin after checking it against their allowlist, everyone
// else passes "*".
func AddCorsHeaders(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", AccessControlAllowedHeaders)
	w.Header().Set("Connection", "close")
}
