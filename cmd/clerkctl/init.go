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
	"os"

	"github.com/spf13/cobra"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/config"
)

// initCmd returns the command that writes a starter catalog file.
func initCmd() *cobra.Command {
	var output string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter catalog file",
		Long: `Write a commented catalog file declaring a Clerk server, one foreign
table per resource, a local and an S3 sink, and a nightly export.

Examples:
  clerkctl init > catalog.yaml
  clerkctl init --output catalog.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			content := config.GenerateExampleCatalogFile()
			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), content)
				return nil
			}

			if err := base.ValidateFilePath(output); err != nil {
				return err
			}
			flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			if !force {
				flags |= os.O_EXCL
			}
			f, err := os.OpenFile(output, flags, 0o600)
			if err != nil {
				if os.IsExist(err) {
					return fmt.Errorf("%s already exists (use --force to overwrite)", output)
				}
				return err
			}
			if _, err := f.WriteString(content); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write (default: stdout)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
