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
	"fmt"
	"net/http"
)

// GraphQL spec on errors is here:
// https://graphql.github.io/graphql-spec/June2018/#sec-Errors

// A Location is the Line+Column index of an error in a request.
type Location struct {
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// A GqlError is a GraphQL error as defined by the GraphQL spec.
type GqlError struct {
	Message    string                 `json:"message"`
	Locations  []Location             `json:"locations,omitempty"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// A GqlErrorList is a list of GraphQL errors as would be found in a response.
type GqlErrorList []*GqlError

func (gqlErr *GqlError) Error() string {
	if gqlErr == nil {
		return ""
	}
	return gqlErr.Message
}

func (errList GqlErrorList) Error() string {
	var buf string
	for i, gqlErr := range errList {
		if i > 0 {
			buf += "\n"
		}
		buf += gqlErr.Error()
	}
	return buf
}

// GqlErrorf returns a new GqlError with the message and args Sprintf'ed as the
// GqlError's Message.
func GqlErrorf(message string, args ...interface{}) *GqlError {
	return &GqlError{
		Message: fmt.Sprintf(message, args...),
	}
}

// WithLocations adds a list of locations to a GqlError and returns the same
// GqlError (fluent style).
func (gqlErr *GqlError) WithLocations(locs ...Location) *GqlError {
	if gqlErr == nil {
		return nil
	}
	gqlErr.Locations = append(gqlErr.Locations, locs...)
	return gqlErr
}

// WithPath adds a path to a GqlError and returns the same GqlError (fluent style).
func (gqlErr *GqlError) WithPath(path []interface{}) *GqlError {
	if gqlErr == nil {
		return nil
	}
	gqlErr.Path = path
	return gqlErr
}

// Kinds of request-level failures.  These are structural failures of the
// request itself and surface as an HTTP status plus a GraphQL error body,
// unlike execution errors which ride inside a 200 response.
const (
	BatchingNotAllowed = "BatchingNotAllowed"
	BatchLimitExceeded = "BatchLimitExceeded"
	InvalidChannel     = "InvalidChannel"
)

// A RequestError is a structural failure of an HTTP request, fatal to the
// whole request before any operation executes.
type RequestError struct {
	Kind    string
	Status  int
	Message string
}

func (re *RequestError) Error() string {
	return re.Message
}

// BatchingNotAllowedError is returned when a request body contains a batch
// but the server has batching disabled.
func BatchingNotAllowedError() *RequestError {
	return &RequestError{
		Kind:    BatchingNotAllowed,
		Status:  http.StatusBadRequest,
		Message: "Batching is not supported by this server.",
	}
}

// BatchLimitExceededError is returned when a batch is larger than the
// configured limit.  No operation from such a batch is ever executed.
func BatchLimitExceededError(limit int) *RequestError {
	return &RequestError{
		Kind:    BatchLimitExceeded,
		Status:  http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf("Batching is limited to %d operations per request.", limit),
	}
}

// InvalidChannelError is returned for subscription channels whose name can't
// identify a pub/sub topic.
func InvalidChannelError(name string) *RequestError {
	return &RequestError{
		Kind:    InvalidChannel,
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("Invalid channel name %q.", name),
	}
}
