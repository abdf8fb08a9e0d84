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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/connectors/scheduler"
	"github.com/tembo-io/clerk-fdw/shared/logger"
)

// exportCmd returns the command that runs one export from a catalog file.
func exportCmd(logs func() io.Writer) *cobra.Command {
	var (
		configPath string
		table      string
		sink       string
		columns    string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a foreign table to a sink declared in a catalog file",
		Long: `Load a catalog file, scan one of its foreign tables and write the rows
to one of its sinks. Prints the export result as JSON.

Examples:
  clerkctl export --config catalog.yaml --table clerk_users --sink archive
  clerkctl export --config catalog.yaml --table clerk_users --sink local --columns user_id,email`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" || table == "" || sink == "" {
				return fmt.Errorf("--config, --table and --sink are required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			w := logs()
			catalog := newCatalog(w)
			defer catalog.Close(context.Background())

			cf, err := catalog.LoadFile(ctx, configPath)
			if err != nil {
				return err
			}
			sched := scheduler.New(catalog)
			sched.SetLogger(log.New(w, "[MCP_SCHEDULER] ", log.LstdFlags), logger.NewWithWriter("clerkctl-export", w))
			if err := sched.Apply(cf); err != nil {
				return err
			}

			result, err := sched.ExportTable(ctx, table, sink, clerk.ColumnsFrom(columns))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "f", "", "Catalog file (required)")
	cmd.Flags().StringVarP(&table, "table", "t", "", "Foreign table to export (required)")
	cmd.Flags().StringVarP(&sink, "sink", "s", "", "Sink name from the catalog file (required)")
	cmd.Flags().StringVarP(&columns, "columns", "c", "", "Comma separated columns (default: table columns)")
	cmd.Flags().DurationVar(&timeout, "timeout", scheduler.DefaultRunTimeout, "Overall export timeout")

	return cmd
}
