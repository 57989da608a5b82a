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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/graphpipe-io/graphpipe/graphpipe/cmd/serve"
	"github.com/graphpipe-io/graphpipe/graphpipe/cmd/version"
	"github.com/graphpipe-io/graphpipe/x"
)

func bindAll(subcommands ...*x.SubCommand) {
	for _, sc := range subcommands {
		RootCmd.AddCommand(sc.Cmd)
		sc.Conf = viper.New()
		x.Check(sc.Conf.BindPFlags(sc.Cmd.Flags()))
		x.Check(sc.Conf.BindPFlags(RootCmd.PersistentFlags()))
		sc.Conf.AutomaticEnv()
		sc.Conf.SetEnvPrefix(sc.EnvPrefix)
		cobra.OnInitialize(func() {
			cfg := rootConf.GetString("config")
			if cfg == "" {
				return
			}
			sc.Conf.SetConfigFile(cfg)
			x.Checkf(sc.Conf.ReadInConfig(), "reading config")
		})
	}
}

func init() {
	bindAll(&serve.Serve, &version.Version)
}
