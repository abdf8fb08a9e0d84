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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tembo-io/clerk-fdw/connectors/clerk"
)

// describeCmd returns the command that lists resources and their columns.
func describeCmd() *cobra.Command {
	var sqlOut bool
	var table string
	var server string

	cmd := &cobra.Command{
		Use:   "describe [object]",
		Short: "Describe supported resources and their columns",
		Long: `Without an argument, list every supported resource. With an object name,
list its columns, or print a CREATE FOREIGN TABLE statement with --sql.

Examples:
  clerkctl describe
  clerkctl describe users
  clerkctl describe organization_memberships --sql --table clerk_memberships`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

			if len(args) == 0 {
				fmt.Fprintln(w, "OBJECT\tPARENT\tCOLUMNS")
				for _, info := range clerk.DescribeAll() {
					parent := info.Parent
					if parent == "" {
						parent = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%d\n", info.Object, parent, len(info.Columns))
				}
				return w.Flush()
			}

			info, err := clerk.Describe(args[0])
			if err != nil {
				return err
			}
			if sqlOut {
				if table == "" {
					table = "clerk_" + info.Object
				}
				fmt.Fprint(out, info.CreateTableSQL(table, server))
				return nil
			}

			fmt.Fprintln(w, "COLUMN\tTYPE\tSOURCE")
			for _, c := range info.Columns {
				src := c.SourcePath
				if src == "" {
					src = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.SQLType, src)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&sqlOut, "sql", false, "Print a CREATE FOREIGN TABLE statement")
	cmd.Flags().StringVar(&table, "table", "", "Table name for --sql (default: clerk_<object>)")
	cmd.Flags().StringVar(&server, "server", "clerk_server", "Server name for --sql")

	return cmd
}
