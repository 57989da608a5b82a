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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDL = `
	type Post {
		id: ID!
		title: String!
		text: String
	}

	type Query {
		getPost(id: ID!): Post
		subscribers(channel: String!): Int!
	}

	type Mutation {
		publish(channel: String!, payload: String): Boolean!
	}

	type Subscription {
		newLink: Post
	}
`

func testSchema(t *testing.T) Schema {
	t.Helper()
	s, err := FromString(testSDL)
	require.NoError(t, err)
	return s
}

func TestFromString_InvalidSDL(t *testing.T) {
	_, err := FromString(`type Query { getPost(id: ID!): MissingType }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "while validating GraphQL schema")
}

func TestOperation_Classification(t *testing.T) {
	s := testSchema(t)

	tests := []struct {
		name           string
		query          string
		isQuery        bool
		isMutation     bool
		isSubscription bool
	}{
		{"query", `query { getPost(id: "0x1") { title } }`, true, false, false},
		{"mutation", `mutation { publish(channel: "c") }`, false, true, false},
		{"subscription", `subscription { newLink { id } }`, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := s.Operation(&Request{Query: tt.query})
			require.NoError(t, err)
			assert.Equal(t, tt.isQuery, op.IsQuery())
			assert.Equal(t, tt.isMutation, op.IsMutation())
			assert.Equal(t, tt.isSubscription, op.IsSubscription())
		})
	}
}

func TestOperation_EmptyQuery(t *testing.T) {
	s := testSchema(t)

	_, err := s.Operation(&Request{Query: ""})
	require.EqualError(t, err, "no query string supplied in request")
}

func TestOperation_ValidationError(t *testing.T) {
	s := testSchema(t)

	_, err := s.Operation(&Request{Query: `query { noSuchField }`})
	require.Error(t, err)
}

func TestOperation_MultipleOperationsNeedName(t *testing.T) {
	s := testSchema(t)
	query := `
		query a { subscribers(channel: "c") }
		query b { subscribers(channel: "d") }`

	_, err := s.Operation(&Request{Query: query})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Operation name must by supplied")

	op, err := s.Operation(&Request{Query: query, OperationName: "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", op.Name())

	_, err = s.Operation(&Request{Query: query, OperationName: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "isn't present in the request")
}

func TestOperation_SubscriptionNotInSchema(t *testing.T) {
	s, err := FromString(`type Query { ping: String }`)
	require.NoError(t, err)

	_, err = s.Operation(&Request{Query: `subscription { newLink }`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema doesn't have any fields defined for subscription")
}

func TestOperation_DeferDirectiveValidates(t *testing.T) {
	s := testSchema(t)

	op, err := s.Operation(&Request{Query: `
		query {
			getPost(id: "0x1") {
				title
				... on Post @defer(label: "slow") {
					text
				}
			}
		}`})
	require.NoError(t, err)
	assert.True(t, op.IsQuery())
}

func TestOperation_StreamDirectiveValidates(t *testing.T) {
	s := testSchema(t)

	_, err := s.Operation(&Request{
		Query: `query { getPost(id: "0x1") { title @stream(initialCount: 1) } }`})
	require.NoError(t, err)
}

func TestFields_NamesAliasesAndArgs(t *testing.T) {
	s := testSchema(t)

	op, err := s.Operation(&Request{
		Query: `query q($c: String!) {
			count: subscribers(channel: $c)
			getPost(id: "0x1") { title }
		}`,
		Variables: map[string]interface{}{"c": "newLink"},
	})
	require.NoError(t, err)

	fields := op.Fields()
	require.Len(t, fields, 2)

	assert.Equal(t, "subscribers", fields[0].Name())
	assert.Equal(t, "count", fields[0].Alias())
	assert.Equal(t, "count", fields[0].ResponseName())
	assert.Equal(t, "newLink", fields[0].ArgValue("channel"))
	assert.Nil(t, fields[0].ArgValue("nonexistent"))

	assert.Equal(t, "getPost", fields[1].Name())
	assert.Equal(t, "getPost", fields[1].ResponseName())
}

func TestOperation_VariableCoercion(t *testing.T) {
	s := testSchema(t)

	op, err := s.Operation(&Request{
		Query:     `query q($c: String!) { subscribers(channel: $c) }`,
		Variables: map[string]interface{}{"c": "updates"},
	})
	require.NoError(t, err)
	assert.Equal(t, "updates", op.Vars()["c"])

	_, err = s.Operation(&Request{
		Query: `query q($c: String!) { subscribers(channel: $c) }`,
		Variables: map[string]interface{}{
			"c": []interface{}{json.Number("3")},
		},
	})
	require.Error(t, err, "a non-string value must fail coercion for String!")
}

func TestParseQuery_CacheHit(t *testing.T) {
	s := testSchema(t)
	query := `query { subscribers(channel: "c") }`

	op1, err := s.Operation(&Request{Query: query})
	require.NoError(t, err)
	op2, err := s.Operation(&Request{Query: query})
	require.NoError(t, err)

	assert.Equal(t, op1.Fields()[0].Name(), op2.Fields()[0].Name())
}
