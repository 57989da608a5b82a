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

// Package resolve routes validated GraphQL operations to the execution
// engine.  Execution semantics (field resolution, error propagation inside
// results) belong to the engine behind the Executor interfaces; this package
// owns validation, classification and the persisted-query handshake.
package resolve

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/graphpipe-io/graphpipe/api"
	"github.com/graphpipe-io/graphpipe/pubsub"
	"github.com/graphpipe-io/graphpipe/schema"
)

const (
	methodResolve = "RequestResolver.Resolve"

	// ErrPersistedQueryNotFound is the message Apollo-style clients look for
	// before retrying with the full query text.
	ErrPersistedQueryNotFound = "PersistedQueryNotFound"

	apqCacheCounters = 100000
	apqCacheMaxCost  = 4096 // stored queries, cost 1 each
)

// An Executor resolves one validated query or mutation to its terminal
// response.  Execution errors belong inside the returned response's error
// list; an Executor should not panic, but a panic is trapped by the caller
// anyway.
type Executor interface {
	Execute(ctx context.Context, req *schema.Request, op schema.Operation) *schema.Response
}

// A StreamExecutor resolves an operation containing @defer or @stream into
// an ordered frame sequence.
type StreamExecutor interface {
	ExecuteStream(ctx context.Context, req *schema.Request, op schema.Operation) (ResultStream, error)
}

// A SubscriptionExecutor begins a subscription, returning the pub/sub
// subscriber feeding it.  The executor decides which channel the operation
// maps to and registers any per-subscription resources with the
// subscriber's OnStop.
type SubscriptionExecutor interface {
	Subscribe(ctx context.Context, req *schema.Request, op schema.Operation) (*pubsub.Subscriber, error)
}

// A Backend is the execution engine the pipeline delegates to.  Streams and
// Subscriptions are optional: without Streams an incremental request
// degrades to a single-frame sequence, without Subscriptions subscription
// operations are rejected.
type Backend struct {
	Executor      Executor
	Streams       StreamExecutor
	Subscriptions SubscriptionExecutor
}

// RequestResolver can process GraphQL requests and write GraphQL JSON
// responses.  It validates each request against the schema, runs the
// persisted-query handshake, and hands the operation to the backend.
type RequestResolver struct {
	schema  schema.Schema
	backend Backend

	// Automatic persisted queries: sha256 hash -> query text.
	apq *ristretto.Cache[string, string]
}

// New creates a new RequestResolver.
func New(s schema.Schema, backend Backend) *RequestResolver {
	apq, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: apqCacheCounters,
		MaxCost:     apqCacheMaxCost,
		BufferItems: 64,
	})
	// The only config above is static, so this can't fail at runtime.
	if err != nil {
		glog.Fatalf("failed to create persisted query cache: %v", err)
	}

	return &RequestResolver{
		schema:  s,
		backend: backend,
		apq:     apq,
	}
}

// Schema returns the schema this resolver validates against.
func (rr *RequestResolver) Schema() schema.Schema {
	return rr.schema
}

// processPersistedQuery implements the automatic-persisted-query handshake.
// A request carrying only a sha256 hash is completed from the store; a
// request carrying both query and hash verifies and stores the query.
func (rr *RequestResolver) processPersistedQuery(req *schema.Request) error {
	hash := req.Extensions.PersistedQuery.Sha256Hash
	if hash == "" {
		return nil
	}

	if req.Query == "" {
		query, ok := rr.apq.Get(hash)
		if !ok {
			return errors.New(ErrPersistedQueryNotFound)
		}
		req.Query = query
		return nil
	}

	sum := sha256.Sum256([]byte(req.Query))
	if hex.EncodeToString(sum[:]) != hash {
		return errors.New("provided sha does not match query")
	}
	rr.apq.Set(hash, req.Query, 1)
	return nil
}

// operation validates req and returns its single operation.
func (rr *RequestResolver) operation(req *schema.Request) (schema.Operation, error) {
	if err := rr.processPersistedQuery(req); err != nil {
		return nil, err
	}
	return rr.schema.Operation(req)
}

// Resolve processes req and returns a GraphQL response.  Validation
// failures and execution errors both come back inside the response's error
// list; Resolve itself never fails.
func (rr *RequestResolver) Resolve(ctx context.Context, req *schema.Request) (resp *schema.Response) {
	startTime := time.Now()
	defer func() {
		glog.V(3).Infof("%s: took %s", methodResolve, time.Since(startTime))
	}()
	defer api.PanicHandler(func(err error) {
		resp = schema.ErrorResponse(err)
	}, req.Query)

	op, err := rr.operation(req)
	if err != nil {
		return schema.ErrorResponse(err)
	}

	if op.IsSubscription() {
		return schema.ErrorResponsef(
			"Subscriptions must be started over a streaming transport (text/event-stream).")
	}

	return rr.backend.Executor.Execute(ctx, req, op)
}

// ResolveStream processes a request whose client negotiated incremental
// delivery.  Operations without @defer/@stream, and backends without stream
// support, yield a single-frame sequence; the transport encoding stays the
// same either way.
func (rr *RequestResolver) ResolveStream(ctx context.Context, req *schema.Request) ResultStream {
	op, err := rr.operation(req)
	if err != nil {
		return singleFrame(schema.ErrorResponse(err))
	}

	if op.IsSubscription() {
		return singleFrame(schema.ErrorResponsef(
			"Subscriptions must be started over a streaming transport (text/event-stream)."))
	}

	if rr.backend.Streams == nil {
		return singleFrame(rr.backend.Executor.Execute(ctx, req, op))
	}

	stream, err := rr.backend.Streams.ExecuteStream(ctx, req, op)
	if err != nil {
		return singleFrame(schema.ErrorResponse(err))
	}
	return stream
}

// ValidateSubscription checks that req is a valid subscription operation
// for the schema, without starting it.
func (rr *RequestResolver) ValidateSubscription(req *schema.Request) error {
	op, err := rr.operation(req)
	if err != nil {
		return err
	}
	if !op.IsSubscription() {
		return errors.Errorf("Not a subscription operation.")
	}
	if rr.backend.Subscriptions == nil {
		return errors.Errorf("This server doesn't serve subscriptions.")
	}
	return nil
}

// ResolveSubscription validates req and begins the subscription, returning
// the subscriber whose payload sequence feeds the transport.
func (rr *RequestResolver) ResolveSubscription(
	ctx context.Context, req *schema.Request) (*pubsub.Subscriber, error) {

	op, err := rr.operation(req)
	if err != nil {
		return nil, err
	}
	if !op.IsSubscription() {
		return nil, errors.Errorf("Not a subscription operation.")
	}
	if rr.backend.Subscriptions == nil {
		return nil, errors.Errorf("This server doesn't serve subscriptions.")
	}

	return rr.backend.Subscriptions.Subscribe(ctx, req, op)
}
