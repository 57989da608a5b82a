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

// Package web serves GraphQL over HTTP.  An inbound request is classified as
// a single operation, a batch, or a subscription, and routed to plain JSON,
// multipart incremental delivery, or Server-Sent Events accordingly.
package web

import (
	"compress/gzip"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/graphpipe-io/graphpipe/api"
	"github.com/graphpipe-io/graphpipe/resolve"
	"github.com/graphpipe-io/graphpipe/schema"
	"github.com/graphpipe-io/graphpipe/x"
)

// DefaultBatchLimit is the largest batch accepted when batching is enabled
// without an explicit limit.
const DefaultBatchLimit = 10

// Options configures the transport behaviour of a GraphQL server.
type Options struct {
	// Batching enables JSON-array request bodies.  Disabled by default:
	// an array body is then rejected with HTTP 400.
	Batching bool

	// BatchLimit caps the operations accepted in one batch.  Zero means
	// DefaultBatchLimit.  A larger batch is rejected with HTTP 413 before
	// any of its operations execute.
	BatchLimit int

	// SSEKeepAlive is the interval between keep-alive comments on an
	// event-stream response.  Zero disables keep-alives.
	SSEKeepAlive time.Duration

	// CORS computes the Access-Control-Allow-Origin value per request.
	// Nil allows every origin.
	CORS *CORSPolicy
}

func (o Options) batchLimit() int {
	if o.BatchLimit <= 0 {
		return DefaultBatchLimit
	}
	return o.BatchLimit
}

// An IServeGraphQL can serve a GraphQL endpoint (currently only on http).
type IServeGraphQL interface {

	// After ServeGQL is called, this IServeGraphQL serves the new resolvers.
	ServeGQL(resolver *resolve.RequestResolver)

	// HTTPHandler returns a http.Handler that serves GraphQL.
	HTTPHandler() http.Handler

	// Resolve processes a GQL Request using the correct resolver and returns
	// a GQL Response.
	Resolve(ctx context.Context, gqlReq *schema.Request) *schema.Response
}

type graphqlHandler struct {
	resolver *resolve.RequestResolver
	handler  http.Handler
	opts     Options
}

// NewServer returns a new IServeGraphQL that can serve the given resolvers.
func NewServer(resolver *resolve.RequestResolver, opts Options) IServeGraphQL {
	gh := &graphqlHandler{resolver: resolver, opts: opts}
	gh.handler = recoveryHandler(commonHeaders(gh, gh))
	return gh
}

func (gh *graphqlHandler) HTTPHandler() http.Handler {
	return gh.handler
}

func (gh *graphqlHandler) ServeGQL(resolver *resolve.RequestResolver) {
	gh.resolver = resolver
}

func (gh *graphqlHandler) Resolve(ctx context.Context, gqlReq *schema.Request) *schema.Response {
	return gh.resolver.Resolve(ctx, gqlReq)
}

// write chooses between the http response writer and gzip writer
// and sends the response using that.
func write(w http.ResponseWriter, rr *schema.Response, acceptGzip bool) {
	var out io.Writer = w

	// If the receiver accepts gzip, then we would update the writer
	// and send gzipped content instead.
	if acceptGzip {
		w.Header().Set("Content-Encoding", "gzip")
		gzw := gzip.NewWriter(w)
		defer gzw.Close()
		out = gzw
	}

	if _, err := rr.WriteTo(out); err != nil {
		glog.Error(err)
	}
}

// writeRequestError surfaces a structural request failure as its HTTP
// status plus a GraphQL error body.  Nothing was executed.
func writeRequestError(w http.ResponseWriter, re *x.RequestError) {
	w.WriteHeader(re.Status)
	if _, err := schema.ErrorResponse(re).WriteTo(w); err != nil {
		glog.Error(err)
	}
}

// ServeHTTP classifies a GraphQL request and routes it to the transport its
// Accept header asks for.  It writes a valid GraphQL JSON response, a
// multipart incremental response, or an event stream to w.
func (gh *graphqlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !gh.isValid() {
		panic("graphqlHandler not initialised")
	}

	ctx := r.Context()
	acceptGzip := strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")

	reqs, isBatch, err := getRequests(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		write(w, schema.ErrorResponse(err), acceptGzip)
		return
	}

	if isBatch {
		if !gh.opts.Batching {
			writeRequestError(w, x.BatchingNotAllowedError())
			return
		}
		if len(reqs) > gh.opts.batchLimit() {
			writeRequestError(w, x.BatchLimitExceededError(gh.opts.batchLimit()))
			return
		}
		gh.serveBatch(w, r, reqs, acceptGzip)
		return
	}

	gqlReq := reqs[0]
	gqlReq.Header = r.Header

	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "text/event-stream"):
		gh.serveSSE(w, r, gqlReq)
	case strings.Contains(accept, "multipart/mixed"):
		gh.serveMultipart(w, r, gqlReq)
	default:
		write(w, gh.resolver.Resolve(ctx, gqlReq), acceptGzip)
	}
}

// serveBatch executes each operation independently and reassembles the
// responses in request order.  One operation failing only shows up in its
// own entry of the response array.
func (gh *graphqlHandler) serveBatch(
	w http.ResponseWriter, r *http.Request, reqs []*schema.Request, acceptGzip bool) {

	resps := make([]*schema.Response, len(reqs))

	var g errgroup.Group
	for i, req := range reqs {
		req.Header = r.Header
		g.Go(func() error {
			resps[i] = gh.resolver.Resolve(r.Context(), req)
			return nil
		})
	}
	// Resolve never returns an error; errors ride inside each response.
	x.Ignore(g.Wait())

	var out io.Writer = w
	if acceptGzip {
		w.Header().Set("Content-Encoding", "gzip")
		gzw := gzip.NewWriter(w)
		defer gzw.Close()
		out = gzw
	}

	if _, err := io.WriteString(out, "["); err != nil {
		glog.Error(err)
		return
	}
	for i, resp := range resps {
		if i > 0 {
			if _, err := io.WriteString(out, ","); err != nil {
				glog.Error(err)
				return
			}
		}
		if _, err := resp.WriteTo(out); err != nil {
			glog.Error(err)
			return
		}
	}
	if _, err := io.WriteString(out, "]"); err != nil {
		glog.Error(err)
	}
}

func (gh *graphqlHandler) isValid() bool {
	return !(gh == nil || gh.resolver == nil)
}

type gzreadCloser struct {
	*gzip.Reader
	io.Closer
}

func (gz gzreadCloser) Close() error {
	if err := gz.Reader.Close(); err != nil {
		return err
	}
	return gz.Closer.Close()
}

// getRequests extracts the GraphQL operations from an HTTP request: one
// request from a GET query string or a JSON object body, several from a
// JSON array body.
func getRequests(r *http.Request) (reqs []*schema.Request, isBatch bool, err error) {
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, false, errors.Wrap(err, "Unable to parse gzip")
		}
		r.Body = gzreadCloser{zr, r.Body}
	}

	switch r.Method {
	case http.MethodGet:
		gqlReq, err := schema.RequestFromQueryString(r.URL.Query())
		if err != nil {
			return nil, false, err
		}
		return []*schema.Request{gqlReq}, false, nil

	case http.MethodPost:
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			return nil, false, errors.Wrap(err, "unable to parse media type")
		}

		switch mediaType {
		case "application/json":
			return schema.ReadRequestBody(r.Body)
		default:
			// https://graphql.org/learn/serving-over-http/#post-request says:
			// "A standard GraphQL POST request should use the application/json
			// content type ..."
			return nil, false, errors.New(
				"Unrecognised Content-Type.  Please use application/json for GraphQL requests")
		}
	default:
		return nil, false,
			errors.New("Unrecognised request method.  Please use GET or POST for GraphQL requests")
	}
}

func commonHeaders(gh *graphqlHandler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin, allowed := gh.opts.CORS.Origin(r)
		if allowed {
			x.AddCorsHeaders(w, origin)
		}
		w.Header().Set("Content-Type", "application/json")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func recoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer api.PanicHandler(func(err error) {
			rr := schema.ErrorResponse(err)
			write(w, rr, strings.Contains(r.Header.Get("Accept-Encoding"), "gzip"))
		}, r.URL.RawQuery)

		next.ServeHTTP(w, r)
	})
}
