package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dray-io/objaccess/internal/objectstore"
)

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key> [<key>...]",
		Short: "Delete objects; missing objects are not an error",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, arg := range args {
				key := objectstore.NormalizeKey(arg)
				if err := store.Delete(ctx, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", key)
			}
			return nil
		},
	}
}
