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

// Package serve runs the GraphPipe HTTP service around the built-in relay
// backend: subscriptions attach to the pub/sub channel named by their root
// field, and the publish mutation fans events out to them.
package serve

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/graphpipe-io/graphpipe/pubsub"
	"github.com/graphpipe-io/graphpipe/resolve"
	"github.com/graphpipe-io/graphpipe/schema"
	"github.com/graphpipe-io/graphpipe/web"
	"github.com/graphpipe-io/graphpipe/x"
)

// Serve is the sub-command invoked when running "graphpipe serve".
var Serve x.SubCommand

func init() {
	Serve.Cmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the GraphPipe GraphQL HTTP service",
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(); err != nil {
				if glog.V(2) {
					fmt.Printf("Error : %+v\n", err)
				} else {
					fmt.Printf("Error : %s\n", err)
				}
				os.Exit(1)
			}
		},
	}
	Serve.EnvPrefix = "GRAPHPIPE_SERVE"

	flags := Serve.Cmd.Flags()
	flags.StringP("schema", "s", "schema.graphql", "GraphQL schema file to serve")
	flags.IntP("port", "p", 8080, "Port on which to run the HTTP service")
	flags.String("graphql-path", "/graphql", "URL path serving GraphQL requests")
	flags.String("health-path", web.DefaultHealthPath, "URL path answering liveness probes")
	flags.String("ready-path", "/ready", "URL path answering readiness probes")
	flags.Bool("batching", false, "Accept JSON-array bodies carrying several operations")
	flags.Int("batch-limit", web.DefaultBatchLimit, "Maximum operations accepted per batch")
	flags.Duration("sse-keepalive", 12*time.Second,
		"Interval between keep-alive comments on event-stream responses; 0 disables them")
	flags.StringSlice("cors-origins", nil,
		"Origins allowed by CORS; empty allows every origin")
}

func run() error {
	x.PrintVersion()

	sdl, err := os.ReadFile(Serve.Conf.GetString("schema"))
	if err != nil {
		return errors.Wrap(err, "while reading schema file")
	}

	gqlSchema, err := schema.FromString(string(sdl))
	if err != nil {
		return err
	}

	registry := pubsub.NewRegistry()
	resolver := resolve.New(gqlSchema, NewRelayBackend(registry))

	cors, err := web.NewCORSPolicy(Serve.Conf.GetStringSlice("cors-origins"))
	if err != nil {
		return err
	}

	server := web.NewServer(resolver, web.Options{
		Batching:     Serve.Conf.GetBool("batching"),
		BatchLimit:   Serve.Conf.GetInt("batch-limit"),
		SSEKeepAlive: Serve.Conf.GetDuration("sse-keepalive"),
		CORS:         cors,
	})

	mux := http.NewServeMux()
	mux.Handle(Serve.Conf.GetString("graphql-path"), server.HTTPHandler())
	mux.Handle(Serve.Conf.GetString("health-path"), web.HealthHandler())
	mux.Handle(Serve.Conf.GetString("ready-path"), web.ReadinessHandler(nil))

	bind := "localhost"
	if Serve.Conf.GetBool("bindall") {
		bind = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", bind, Serve.Conf.GetInt("port"))

	glog.Infof("Bringing up GraphQL HTTP API at %s%s", addr, Serve.Conf.GetString("graphql-path"))
	return errors.Wrap(http.ListenAndServe(addr, mux), "GraphQL server failed")
}
