package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dreamware/vectorcore/internal/query"
)

func newDeleteCmd() *cobra.Command {
	var bucket, indexName, keysCSV string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Tombstone one or more vectors by key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := splitKeysCSV(keysCSV)
			if len(keys) == 0 {
				return fmt.Errorf("--keys must name at least one key")
			}

			planner, cleanup, err := newPlanner(cmd.Context(), resolveConfig())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := runDeleteVectors(cmd.Context(), planner, bucket, indexName, keys); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tombstoned %d key(s)\n", len(keys))
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket name (required)")
	cmd.Flags().StringVar(&indexName, "index", "", "Index name (required)")
	cmd.Flags().StringVar(&keysCSV, "keys", "", "Comma-separated keys to delete (required)")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("index")
	_ = cmd.MarkFlagRequired("keys")

	return cmd
}

func splitKeysCSV(s string) []string {
	var keys []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}

func runDeleteVectors(ctx context.Context, planner *query.Planner, bucket, index string, keys []string) error {
	return planner.DeleteVectors(ctx, bucket, index, keys)
}
