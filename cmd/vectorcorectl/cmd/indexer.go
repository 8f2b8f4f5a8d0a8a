package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreamware/vectorcore/internal/indexer"
)

// newIndexerCmd groups build-cycle operations normally run by a
// long-lived IX worker, exposed here so an operator can trigger or
// replay one out of band.
func newIndexerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexer",
		Short: "Drive the build cycle directly",
	}
	cmd.AddCommand(newIndexerRunOnceCmd())
	return cmd
}

func newIndexerRunOnceCmd() *cobra.Command {
	var bucket, indexName string
	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run a single build cycle for one index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cycle, err := newIndexerCycle(cmd.Context(), resolveConfig())
			if err != nil {
				return err
			}
			result, err := runIndexerRunOnce(cmd.Context(), cycle, bucket, indexName)
			if err != nil {
				return err
			}
			if result.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped: %s\n", result.Reason)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "built %d shard(s), %d failed, manifest now at version %d\n",
				result.ShardsBuilt, result.ShardsFailed, result.ManifestAfter)
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket name (required)")
	cmd.Flags().StringVar(&indexName, "index", "", "Index name (required)")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func runIndexerRunOnce(ctx context.Context, cycle *indexer.Cycle, bucket, index string) (indexer.RunResult, error) {
	return cycle.Run(ctx, bucket, index)
}
