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
	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/dgraph-io/gqlparser/v2/parser"
	"github.com/dgraph-io/gqlparser/v2/validator"
	_ "github.com/dgraph-io/gqlparser/v2/validator/rules" // make gql validator init() all rules
	"github.com/dgraph-io/ristretto/v2"
	"github.com/dgryski/go-farm"
	"github.com/pkg/errors"
)

// Wrap the github.com/dgraph-io/gqlparser/v2/ast definitions so that the bulk
// of the pipeline is dependent on behaviours we expect from a GraphQL schema
// and validation, but not dependent on the exact structure in the gqlparser.

// A Schema represents a valid GraphQL schema.  The execution engine behind it
// is an external collaborator; the pipeline only needs validation and
// operation classification.
type Schema interface {
	// Operation finds the operation in req, if it is a valid request for this
	// schema.  If the request is GraphQL valid, it must contain a single valid
	// operation.  If either the request is malformed or doesn't contain a
	// valid operation, all GraphQL errors encountered are returned.
	Operation(req *Request) (Operation, error)
}

// An Operation is a single valid GraphQL operation from a request.
type Operation interface {
	IsQuery() bool
	IsMutation() bool
	IsSubscription() bool

	// Name returns the operation name, or "" for an anonymous operation.
	Name() string

	// Fields returns the operation's top-level fields.
	Fields() []Field

	// Vars returns the operation's variable values after coercion against
	// the schema's variable definitions.
	Vars() map[string]interface{}
}

// A Field is one top-level field from an Operation.
type Field interface {
	Name() string
	Alias() string

	// ResponseName returns the name this field has in the response: the
	// alias if there is one, the field name otherwise.
	ResponseName() string

	// ArgValue returns the value of the named argument with the
	// operation's variables substituted in, or nil if absent.
	ArgValue(name string) interface{}
}

const (
	docCacheCounters = 100000
	docCacheMaxCost  = 1024 // cached documents, cost 1 each
)

// Incremental-delivery directives are part of the transport contract, not of
// any user schema, so they are declared alongside the prelude.  Execution of
// the directives is up to the engine behind the pipeline.
const incrementalDirectiveDefs = `
directive @defer(if: Boolean = true, label: String) on FRAGMENT_SPREAD | INLINE_FRAGMENT
directive @stream(if: Boolean = true, label: String, initialCount: Int = 0) on FIELD
`

type schema struct {
	schema *ast.Schema

	// Parsed query documents keyed by a farm fingerprint of the query
	// string, so repeated requests skip the parser.
	docCache *ristretto.Cache[uint64, *ast.QueryDocument]
}

type operation struct {
	op    *ast.OperationDefinition
	vars  map[string]interface{}
	query string
}

type field struct {
	field *ast.Field
	op    *operation
}

// FromString builds a Schema from an SDL string.
func FromString(sdl string) (Schema, error) {
	doc, gqlErr := parser.ParseSchemas(validator.Prelude,
		&ast.Source{Input: incrementalDirectiveDefs},
		&ast.Source{Input: sdl})
	if gqlErr != nil {
		return nil, errors.Wrap(gqlErr, "while parsing GraphQL schema")
	}

	astSchema, gqlErr := validator.ValidateSchemaDocument(doc)
	if gqlErr != nil {
		return nil, errors.Wrap(gqlErr, "while validating GraphQL schema")
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint64, *ast.QueryDocument]{
		NumCounters: docCacheCounters,
		MaxCost:     docCacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "while creating query document cache")
	}

	return &schema{schema: astSchema, docCache: cache}, nil
}

func (s *schema) parseQuery(query string) (*ast.QueryDocument, error) {
	key := farm.Fingerprint64([]byte(query))
	if doc, ok := s.docCache.Get(key); ok {
		return doc, nil
	}

	doc, gqlErr := parser.ParseQuery(&ast.Source{Input: query})
	if gqlErr != nil {
		return nil, gqlErr
	}

	s.docCache.Set(key, doc, 1)
	return doc, nil
}

func (s *schema) Operation(req *Request) (Operation, error) {
	if req == nil || req.Query == "" {
		return nil, errors.New("no query string supplied in request")
	}

	doc, err := s.parseQuery(req.Query)
	if err != nil {
		return nil, err
	}

	listErr := validator.Validate(s.schema, doc, req.Variables)
	if len(listErr) != 0 {
		return nil, listErr
	}

	if len(doc.Operations) == 1 && doc.Operations[0].Operation == ast.Subscription &&
		s.schema.Subscription == nil {
		return nil, errors.Errorf("Not resolving subscription because schema doesn't have any " +
			"fields defined for subscription operation.")
	}

	if len(doc.Operations) > 1 && req.OperationName == "" {
		return nil, errors.Errorf("Operation name must by supplied when query has more " +
			"than 1 operation.")
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return nil, errors.Errorf("Supplied operation name %s isn't present in the request.",
			req.OperationName)
	}

	vars, gqlErr := validator.VariableValues(s.schema, op, req.Variables)
	if gqlErr != nil {
		return nil, gqlErr
	}

	return &operation{op: op, vars: vars, query: req.Query}, nil
}

func (o *operation) IsQuery() bool {
	return o.op.Operation == ast.Query
}

func (o *operation) IsMutation() bool {
	return o.op.Operation == ast.Mutation
}

func (o *operation) IsSubscription() bool {
	return o.op.Operation == ast.Subscription
}

func (o *operation) Name() string {
	return o.op.Name
}

func (o *operation) Fields() []Field {
	var fields []Field
	for _, sel := range o.op.SelectionSet {
		if f, ok := sel.(*ast.Field); ok {
			fields = append(fields, &field{field: f, op: o})
		}
	}
	return fields
}

func (o *operation) Vars() map[string]interface{} {
	return o.vars
}

func (f *field) Name() string {
	return f.field.Name
}

func (f *field) Alias() string {
	return f.field.Alias
}

func (f *field) ResponseName() string {
	if f.field.Alias != "" {
		return f.field.Alias
	}
	return f.field.Name
}

func (f *field) ArgValue(name string) interface{} {
	arg := f.field.Arguments.ForName(name)
	if arg == nil {
		return nil
	}
	value, err := arg.Value.Value(f.op.vars)
	if err != nil {
		return nil
	}
	return value
}
