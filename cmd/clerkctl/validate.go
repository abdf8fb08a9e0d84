// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tembo-io/clerk-fdw/connectors/clerk"
)

// validateCmd returns the command that checks an option set.
func validateCmd() *cobra.Command {
	var options []string
	var foreignTable bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate foreign server or foreign table options",
		Long: `Validate an option set as the catalog would when creating a foreign
server, or a foreign table with --foreign-table.

Examples:
  clerkctl validate --option api_url=https://api.clerk.com/v1 --option rate_limit=10
  clerkctl validate --foreign-table --option object=users --option page_size=100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseOptions(options)
			if err != nil {
				return err
			}

			kind := "server"
			if foreignTable {
				kind = "foreign table"
			}
			if err := clerk.ValidateOptions(opts, foreignTable); err != nil {
				return fmt.Errorf("invalid %s options: %w", kind, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d %s option(s) valid\n", len(opts), kind)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&options, "option", nil, "Option key=value, repeatable")
	cmd.Flags().BoolVar(&foreignTable, "foreign-table", false, "Validate as foreign table options")

	return cmd
}

func parseOptions(pairs []string) (map[string]string, error) {
	opts := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid option %q, want key=value", p)
		}
		opts[k] = v
	}
	return opts, nil
}
