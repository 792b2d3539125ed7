package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dray-io/objaccess/internal/objectstore"
)

func newStatCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stat <key>",
		Short: "Show object metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			meta, err := store.Head(ctx, objectstore.NormalizeKey(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(meta)
			}

			fmt.Fprintf(out, "Key:           %s\n", meta.Key)
			fmt.Fprintf(out, "Size:          %s (%d bytes)\n", humanize.IBytes(uint64(meta.Size)), meta.Size)
			fmt.Fprintf(out, "Content-Type:  %s\n", meta.ContentType)
			fmt.Fprintf(out, "ETag:          %s\n", meta.ETag)
			if meta.LastModified > 0 {
				modified := time.UnixMilli(meta.LastModified)
				fmt.Fprintf(out, "Last-Modified: %s (%s)\n", modified.UTC().Format(time.RFC3339), humanize.Time(modified))
			}
			keys := make([]string, 0, len(meta.Metadata))
			for k := range meta.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "Meta:          %s=%s\n", k, meta.Metadata[k])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}
