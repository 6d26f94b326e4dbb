package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hanpama/membergraph/internal/graph"
	"github.com/hanpama/membergraph/internal/schema"
	"github.com/hanpama/membergraph/internal/store"
)

func newSchemaCommand() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the served schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), graph.SDL())
				return err
			}
			// The schema does not depend on the backend.
			svc, err := graph.New(store.NewMemory())
			if err != nil {
				return fmt.Errorf("build schema: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), schema.Render(svc.Schema()))
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the embedded SDL as written")
	return cmd
}
