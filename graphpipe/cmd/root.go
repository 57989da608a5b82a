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

package cmd

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/graphpipe-io/graphpipe/x"
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "graphpipe",
	Short: "GraphPipe: GraphQL-over-HTTP serving pipeline",
	Long: `
GraphPipe serves GraphQL over HTTP with request batching, incremental
delivery of @defer and @stream results over multipart responses, and
subscriptions fanned out from an in-memory pub/sub over Server-Sent Events.
` + x.BuildDetails(),
}

var rootConf = viper.New()

// Execute adds all child commands to the root command and sets flags
// appropriately.  This is called by main.main().  It only needs to happen
// once to the RootCmd.
func Execute() {
	// Parse the stdlib flag set for glog's -v, -logtostderr and friends.
	goflag.Parse()
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().String("config", "",
		"Configuration file. Takes precedence over default values, but is "+
			"overridden to values set with environment variables and flags.")
	RootCmd.PersistentFlags().Bool("bindall", true,
		"Use 0.0.0.0 instead of localhost to bind to all addresses on local machine.")
	RootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
	x.Check(rootConf.BindPFlags(RootCmd.PersistentFlags()))
}
