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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/connectors/registry"
)

const (
	cliServer = "clerkctl"
	cliTable  = "clerkctl_scan"
)

// scanCmd returns the command that prints a resource as NDJSON rows.
func scanCmd(logs func() io.Writer) *cobra.Command {
	var (
		object   string
		columns  string
		apiKey   string
		apiURL   string
		where    []string
		delay    time.Duration
		maxPages int
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a Clerk resource and print rows as NDJSON",
		Long: `Scan a Clerk resource and print one JSON object per row.

The API key is read from --api-key, then CLERK_API_KEY. Diagnostics for
skipped pages or organizations are printed to stderr once the scan ends.

Examples:
  clerkctl scan --object users --columns user_id,email
  clerkctl scan --object organization_memberships --where organization_id=org_2abc
  CLERK_API_KEY=sk_live_x clerkctl scan --object organizations`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if object == "" {
				return fmt.Errorf("--object is required")
			}
			predicates, err := parsePredicates(where)
			if err != nil {
				return err
			}

			opts := map[string]interface{}{}
			if apiKey != "" {
				opts[clerk.OptAPIKey] = apiKey
			}
			if apiURL != "" {
				opts[clerk.OptAPIURL] = apiURL
			}
			if cmd.Flags().Changed("courtesy-delay") {
				opts[clerk.OptCourtesyDelay] = delay.String()
			}
			if maxPages > 0 {
				opts[clerk.OptMaxPages] = fmt.Sprint(maxPages)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			catalog := newCatalog(logs())
			defer catalog.Close(context.Background())

			if err := catalog.CreateServer(ctx, &base.ConnectorConfig{
				Name:       cliServer,
				Type:       clerk.ConnectorType,
				Options:    opts,
				Timeout:    clerk.DefaultTimeout,
				MaxRetries: 3,
			}); err != nil {
				return err
			}
			if err := catalog.CreateForeignTable(ctx, registry.ForeignTable{
				Name:    cliTable,
				Server:  cliServer,
				Options: map[string]string{clerk.OptObject: object},
			}); err != nil {
				return err
			}

			scan, err := catalog.OpenScan(ctx, cliTable, clerk.ColumnsFrom(columns), predicates)
			if err != nil {
				return err
			}
			defer scan.EndScan()

			out := cmd.OutOrStdout()
			for row, ok := scan.NextRow(); ok; row, ok = scan.NextRow() {
				line, err := row.MarshalJSON()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n", line)
			}

			errOut := cmd.ErrOrStderr()
			for _, d := range scan.Diagnostics() {
				b, _ := json.Marshal(d)
				fmt.Fprintf(errOut, "diagnostic: %s\n", b)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&object, "object", "o", "", "Resource to scan, e.g. users (required)")
	cmd.Flags().StringVarP(&columns, "columns", "c", "", "Comma separated columns (default: every column)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Clerk secret key (default: $CLERK_API_KEY)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Clerk API root (default: "+clerk.DefaultAPIURL+")")
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "Equality predicate column=value, repeatable")
	cmd.Flags().DurationVar(&delay, "courtesy-delay", clerk.DefaultCourtesyDelay, "Pause between page requests")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Page cap per listing (default: connector default)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall scan timeout")

	return cmd
}

// parsePredicates turns column=value pairs into equality predicates.
func parsePredicates(pairs []string) ([]clerk.Predicate, error) {
	var out []clerk.Predicate
	for _, p := range pairs {
		col, val, ok := strings.Cut(p, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid predicate %q, want column=value", p)
		}
		out = append(out, clerk.Predicate{Column: col, Operator: "=", Value: strings.TrimSpace(val)})
	}
	return out, nil
}
