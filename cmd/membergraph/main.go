// Command membergraph serves the member graph over HTTP.
//
//	membergraph serve --config /etc/membergraph/config.yaml
//	membergraph schema
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "membergraph",
		Short:         "GraphQL API over the member store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to the config file (default ./config.yaml)")
	root.AddCommand(newServeCommand(), newSchemaCommand())
	return root
}
