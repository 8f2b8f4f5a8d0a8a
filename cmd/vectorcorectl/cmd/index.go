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

// newIndexCmd groups the IndexDescriptor lifecycle subcommands.
func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create, delete, and inspect indexes within a bucket",
	}
	cmd.AddCommand(newIndexCreateCmd())
	cmd.AddCommand(newIndexDeleteCmd())
	cmd.AddCommand(newIndexGetCmd())
	return cmd
}

func newIndexCreateCmd() *cobra.Command {
	var bucket, indexName, metric string
	var dimension, ivfNList, pqM, pqNBits, defaultNProbe int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new index within a bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dm, err := parseDistanceMetric(metric)
			if err != nil {
				return err
			}
			catalog, err := newCatalog(cmd.Context(), resolveConfig())
			if err != nil {
				return err
			}
			descriptor := model.IndexDescriptor{
				Bucket:         bucket,
				IndexName:      indexName,
				Dimension:      dimension,
				DataType:       model.DataTypeFloat32,
				DistanceMetric: dm,
				IVFNList:       ivfNList,
				PQM:            pqM,
				PQNBits:        pqNBits,
				DefaultNProbe:  defaultNProbe,
				CreatedAt:      time.Now().UTC(),
			}
			if err := runIndexCreate(cmd.Context(), catalog, descriptor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created index %q in bucket %q\n", indexName, bucket)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket name (required)")
	cmd.Flags().StringVar(&indexName, "index", "", "Index name (required)")
	cmd.Flags().IntVar(&dimension, "dimension", 0, "Embedding dimension (required)")
	cmd.Flags().StringVar(&metric, "metric", "euclidean", "Distance metric: euclidean or cosine")
	cmd.Flags().IntVar(&ivfNList, "ivf-nlist", 100, "IVF number of coarse clusters")
	cmd.Flags().IntVar(&pqM, "pq-m", 8, "PQ number of subquantizers")
	cmd.Flags().IntVar(&pqNBits, "pq-nbits", 8, "PQ bits per subquantizer code")
	cmd.Flags().IntVar(&defaultNProbe, "default-nprobe", 8, "Default number of IVF cells probed per query")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("index")
	_ = cmd.MarkFlagRequired("dimension")

	return cmd
}

func parseDistanceMetric(s string) (model.DistanceMetric, error) {
	switch s {
	case "euclidean", "EUCLIDEAN":
		return model.MetricEuclidean, nil
	case "cosine", "COSINE":
		return model.MetricCosine, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q: expected euclidean or cosine", s)
	}
}

func runIndexCreate(ctx context.Context, catalog *model.Catalog, d model.IndexDescriptor) error {
	return catalog.CreateIndex(ctx, d)
}

func newIndexDeleteCmd() *cobra.Command {
	var bucket, indexName string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := newCatalog(cmd.Context(), resolveConfig())
			if err != nil {
				return err
			}
			if err := catalog.DeleteIndex(cmd.Context(), bucket, indexName); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted index %q in bucket %q\n", indexName, bucket)
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket name (required)")
	cmd.Flags().StringVar(&indexName, "index", "", "Index name (required)")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newIndexGetCmd() *cobra.Command {
	var bucket, indexName string
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show an index's descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := newCatalog(cmd.Context(), resolveConfig())
			if err != nil {
				return err
			}
			descriptor, err := catalog.GetIndex(cmd.Context(), bucket, indexName)
			if err != nil {
				return err
			}
			return renderIndexDescriptor(cmd.OutOrStdout(), descriptor, jsonOutput)
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket name (required)")
	cmd.Flags().StringVar(&indexName, "index", "", "Index name (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func renderIndexDescriptor(w io.Writer, d model.IndexDescriptor, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	fmt.Fprintf(w, "index_name:      %s\n", d.IndexName)
	fmt.Fprintf(w, "bucket:          %s\n", d.Bucket)
	fmt.Fprintf(w, "dimension:       %d\n", d.Dimension)
	fmt.Fprintf(w, "data_type:       %s\n", d.DataType)
	fmt.Fprintf(w, "distance_metric: %s\n", d.DistanceMetric)
	fmt.Fprintf(w, "ivf_nlist:       %d\n", d.IVFNList)
	fmt.Fprintf(w, "pq_m:            %d\n", d.PQM)
	fmt.Fprintf(w, "pq_nbits:        %d\n", d.PQNBits)
	fmt.Fprintf(w, "default_nprobe:  %d\n", d.DefaultNProbe)
	fmt.Fprintf(w, "created_at:      %s\n", d.CreatedAt.Format(time.RFC3339))
	return nil
}
