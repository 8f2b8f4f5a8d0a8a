package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamware/vectorcore/internal/model"
)

// newBucketCmd groups the VectorBucket lifecycle subcommands.
func newBucketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bucket",
		Short: "Create, delete, and list vector buckets",
	}
	cmd.AddCommand(newBucketCreateCmd())
	cmd.AddCommand(newBucketDeleteCmd())
	cmd.AddCommand(newBucketListCmd())
	return cmd
}

func newBucketCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new vector bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := newCatalog(cmd.Context(), resolveConfig())
			if err != nil {
				return err
			}
			if err := runBucketCreate(cmd.Context(), catalog, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created bucket %q\n", args[0])
			return nil
		},
	}
	return cmd
}

func runBucketCreate(ctx context.Context, catalog *model.Catalog, name string) error {
	return catalog.CreateBucket(ctx, model.VectorBucket{Name: name, CreatedAt: time.Now().UTC()})
}

func newBucketDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a vector bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := newCatalog(cmd.Context(), resolveConfig())
			if err != nil {
				return err
			}
			if err := runBucketDelete(cmd.Context(), catalog, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted bucket %q\n", args[0])
			return nil
		},
	}
	return cmd
}

func runBucketDelete(ctx context.Context, catalog *model.Catalog, name string) error {
	return catalog.DeleteBucket(ctx, name)
}

func newBucketListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vector buckets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := newCatalog(cmd.Context(), resolveConfig())
			if err != nil {
				return err
			}
			buckets, err := catalog.ListBuckets(cmd.Context())
			if err != nil {
				return err
			}
			return renderBucketList(cmd.OutOrStdout(), buckets, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderBucketList(w io.Writer, buckets []model.VectorBucket, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(buckets)
	}
	for _, b := range buckets {
		fmt.Fprintf(w, "%s\t%s\n", b.Name, b.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
