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

package schema

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/graphpipe-io/graphpipe/x"
)

// GraphQL spec on response is here:
// https://graphql.github.io/graphql-spec/June2018/#sec-Response

// A Response is a GraphQL response, or one frame of an incremental-delivery
// sequence.  For a plain query or mutation there is exactly one Response.
// For @defer/@stream delivery the initial frame has HasNext true, each patch
// frame carries the Path it merges at, and the last frame has HasNext false.
type Response struct {
	Errors     x.GqlErrorList
	Data       bytes.Buffer
	Path       []interface{}
	Label      string
	HasNext    *bool
	Extensions map[string]interface{}
}

// ErrorResponse formats an error as a list of GraphQL errors and builds
// a response with that error list and no data.  Such a response should
// usually be returned as HTTP 200 with the error in the errors field,
// unless the request itself was structurally invalid.
func ErrorResponse(err error) *Response {
	return &Response{
		Errors: AsGQLErrors(err),
	}
}

// ErrorResponsef returns a Response containing a single GraphQL error with
// a message obtained by Sprintf-ing the arguments.
func ErrorResponsef(format string, args ...interface{}) *Response {
	return &Response{
		Errors: x.GqlErrorList{x.GqlErrorf(format, args...)},
	}
}

// WithError generates GraphQL errors from err and records those in r.
func (r *Response) WithError(err error) {
	r.Errors = append(r.Errors, AsGQLErrors(err)...)
}

// AddData adds p to r's data buffer.  If p is empty, the call has no effect.
// If r.Data is empty before the call, then r.Data becomes {p}
// If r.Data contains data it always looks like {f,g,...}, and
// adding to that results in {f,g,...,p}
func (r *Response) AddData(p []byte) {
	if r == nil || len(p) == 0 {
		return
	}

	if r.Data.Len() > 0 {
		// The end of the buffer is always the closing `}`
		r.Data.Truncate(r.Data.Len() - 1)
		r.Data.WriteRune(',')
	}

	if r.Data.Len() == 0 {
		r.Data.WriteRune('{')
	}

	r.Data.Write(p)
	r.Data.WriteRune('}')
}

// SetDataJSON replaces r's data buffer with a complete JSON value.
func (r *Response) SetDataJSON(data []byte) {
	if r == nil {
		return
	}
	r.Data.Reset()
	r.Data.Write(data)
}

// WithHasNext marks r as part of an incremental sequence.  A frame with
// hasNext false is the terminal frame of its sequence.
func (r *Response) WithHasNext(hasNext bool) *Response {
	r.HasNext = &hasNext
	return r
}

// Terminal reports whether r ends an incremental sequence.  A response that
// never carried hasNext is its own complete sequence and is also terminal.
func (r *Response) Terminal() bool {
	return r == nil || r.HasNext == nil || !*r.HasNext
}

type jsonResponse struct {
	Errors     x.GqlErrorList         `json:"errors,omitempty"`
	Data       json.RawMessage        `json:"data,omitempty"`
	Path       []interface{}          `json:"path,omitempty"`
	Label      string                 `json:"label,omitempty"`
	HasNext    *bool                  `json:"hasNext,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Bytes returns the JSON encoding of r.  On a marshal failure it returns a
// valid JSON error body rather than failing, so a frame is always writable.
func (r *Response) Bytes() []byte {
	if r == nil {
		return []byte(`{"errors":[{"message":"Internal error - no response to write."}],"data":null}`)
	}

	js, err := json.Marshal(jsonResponse{
		Errors:     r.Errors,
		Data:       r.Data.Bytes(),
		Path:       r.Path,
		Label:      r.Label,
		HasNext:    r.HasNext,
		Extensions: r.Extensions,
	})
	if err != nil {
		msg := "Internal error - failed to marshal a valid JSON response"
		glog.Errorf("%+v", errors.Wrap(err, msg))
		js = []byte(`{"errors":[{"message":"` + msg + `"}],"data":null}`)
	}
	return js
}

// WriteTo writes the GraphQL response as unindented JSON to w
// and returns the number of bytes written and error, if any.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	i, err := w.Write(r.Bytes())
	return int64(i), err
}
