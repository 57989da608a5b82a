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
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// A Request represents a GraphQL request.  It makes no guarantees that the
// request is valid.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
	Extensions    RequestExtensions      `json:"extensions"`
	Header        http.Header            `json:"-"`
}

// RequestExtensions represents extensions received in requests.
type RequestExtensions struct {
	PersistedQuery PersistedQuery `json:"persistedQuery"`
}

// PersistedQuery represents the persisted query metadata received from
// clients like Apollo.
type PersistedQuery struct {
	Sha256Hash string `json:"sha256Hash"`
}

// ReadRequestBody reads an HTTP request body as either a single GraphQL
// request or a batch of them.  A JSON object is one request, a JSON array is
// a batch.  Whether a batch is acceptable, and how large it may be, is the
// caller's policy - this only splits the body.
//
// Numbers are decoded with json.Number so that variable values round-trip
// to the executor without float conversion.
func ReadRequestBody(body io.Reader) (reqs []*Request, isBatch bool, err error) {
	br := bufio.NewReader(body)

	// Classify by the first non-whitespace byte: '[' is a batch,
	// anything else is left for the object decoder to accept or reject.
	for {
		b, peekErr := br.ReadByte()
		if peekErr != nil {
			return nil, false, errors.Wrap(peekErr, "Not a valid GraphQL request body")
		}
		if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
			continue
		}
		isBatch = b == '['
		if err := br.UnreadByte(); err != nil {
			return nil, false, errors.Wrap(err, "Not a valid GraphQL request body")
		}
		break
	}

	d := json.NewDecoder(br)
	d.UseNumber()

	if isBatch {
		if err := d.Decode(&reqs); err != nil {
			return nil, true, errors.Wrap(err, "Not a valid GraphQL request body")
		}
		// A null entry decodes to a nil Request.
		for _, req := range reqs {
			if req == nil {
				return nil, true, errors.New("Not a valid GraphQL request body")
			}
		}
		return reqs, true, nil
	}

	gqlReq := &Request{}
	if err := d.Decode(gqlReq); err != nil {
		return nil, false, errors.Wrap(err, "Not a valid GraphQL request body")
	}
	return []*Request{gqlReq}, false, nil
}

// RequestFromQueryString builds a Request from GET query string parameters,
// as in http://myapi/graphql?query={me{name}}.
func RequestFromQueryString(query map[string][]string) (*Request, error) {
	gqlReq := &Request{}

	if vals, ok := query["query"]; ok && len(vals) > 0 {
		gqlReq.Query = vals[0]
	}
	if vals, ok := query["operationName"]; ok && len(vals) > 0 {
		gqlReq.OperationName = vals[0]
	}
	if vals, ok := query["variables"]; ok && len(vals) > 0 {
		d := json.NewDecoder(strings.NewReader(vals[0]))
		d.UseNumber()
		if err := d.Decode(&gqlReq.Variables); err != nil {
			return nil, errors.Wrap(err, "Not a valid GraphQL request body")
		}
	}
	if vals, ok := query["extensions"]; ok && len(vals) > 0 {
		d := json.NewDecoder(strings.NewReader(vals[0]))
		if err := d.Decode(&gqlReq.Extensions); err != nil {
			return nil, errors.Wrap(err, "Not a valid GraphQL request extensions value")
		}
	}

	return gqlReq, nil
}
