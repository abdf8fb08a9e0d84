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


// Package main is the clerkctl operator CLI.
//
// clerkctl scans Clerk resources as rows, describes the column layout of
// each resource, validates foreign server and table options, and runs
// one-off exports declared in a catalog file. init writes a starter
// catalog file.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/connectors/registry"
	"github.com/tembo-io/clerk-fdw/shared/logger"

	_ "github.com/tembo-io/clerk-fdw/connectors/azureblob"
	_ "github.com/tembo-io/clerk-fdw/connectors/cassandra"
	_ "github.com/tembo-io/clerk-fdw/connectors/gcs"
	_ "github.com/tembo-io/clerk-fdw/connectors/mongodb"
	_ "github.com/tembo-io/clerk-fdw/connectors/mysql"
	_ "github.com/tembo-io/clerk-fdw/connectors/postgres"
	_ "github.com/tembo-io/clerk-fdw/connectors/s3"
)

var version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "clerkctl",
		Short: "Clerk foreign data wrapper CLI",
		Long: `clerkctl reads Clerk identity data as relational rows.

Scan a resource, describe its columns, validate foreign server and
table options, or export a catalog table to a configured sink.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log connector activity to stderr")

	logs := func() io.Writer {
		if verbose {
			return os.Stderr
		}
		return io.Discard
	}

	rootCmd.AddCommand(scanCmd(logs))
	rootCmd.AddCommand(describeCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(exportCmd(logs))
	rootCmd.AddCommand(initCmd())

	return rootCmd
}

// newCatalog returns an in-memory catalog whose logs go to w. Rows own
// stdout, so nothing else may write there.
func newCatalog(w io.Writer) *registry.Catalog {
	catalog := registry.NewCatalog()
	catalog.SetLogger(log.New(w, "[MCP_CATALOG] ", log.LstdFlags))
	catalog.SetFactory(func(cfg *base.ConnectorConfig) (*clerk.Connector, error) {
		conn := clerk.NewConnector()
		conn.SetLogger(log.New(w, "[MCP_CLERK] ", log.LstdFlags))
		conn.SetScanLogger(logger.NewWithWriter("clerkctl", w))
		return conn, nil
	})
	return catalog
}
