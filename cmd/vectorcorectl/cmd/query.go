package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dreamware/vectorcore/internal/query"
)

func newQueryCmd() *cobra.Command {
	var bucket, indexName, embeddingCSV, filterJSON string
	var topK, nprobe int
	var returnData, returnMetadata, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a topK approximate nearest-neighbor search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			embedding, err := parseEmbeddingCSV(embeddingCSV)
			if err != nil {
				return err
			}
			filter, err := parseFilterJSON(filterJSON)
			if err != nil {
				return err
			}

			q := query.Query{
				Embedding:      embedding,
				TopK:           topK,
				Filter:         filter,
				ReturnData:     returnData,
				ReturnMetadata: returnMetadata,
			}
			if cmd.Flags().Changed("nprobe") {
				q.NProbe = &nprobe
			}

			planner, cleanup, err := newPlanner(cmd.Context(), resolveConfig())
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := runQuery(cmd.Context(), planner, bucket, indexName, q)
			if err != nil {
				return err
			}
			return renderQueryResult(cmd.OutOrStdout(), result, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket name (required)")
	cmd.Flags().StringVar(&indexName, "index", "", "Index name (required)")
	cmd.Flags().StringVar(&embeddingCSV, "embedding", "", "Query embedding as comma-separated floats (required)")
	cmd.Flags().IntVar(&topK, "top-k", 10, "Number of results to return")
	cmd.Flags().IntVar(&nprobe, "nprobe", 0, "IVF cells to probe (default: the index's default_nprobe)")
	cmd.Flags().StringVar(&filterJSON, "filter", "", "Metadata filter as a JSON object")
	cmd.Flags().BoolVar(&returnData, "return-data", false, "Include each match's reconstructed embedding")
	cmd.Flags().BoolVar(&returnMetadata, "return-metadata", false, "Include each match's stored metadata")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("index")
	_ = cmd.MarkFlagRequired("embedding")

	return cmd
}

func parseEmbeddingCSV(s string) ([]float32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("--embedding must not be empty")
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parsing embedding component %q: %w", p, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

func parseFilterJSON(s string) (query.Filter, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("parsing --filter: %w", err)
	}
	return query.ParseFilter(raw)
}

func runQuery(ctx context.Context, planner *query.Planner, bucket, index string, q query.Query) (query.QueryResult, error) {
	return planner.Query(ctx, bucket, index, q)
}

func renderQueryResult(w io.Writer, result query.QueryResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	for _, m := range result.Matches {
		fmt.Fprintf(w, "%s\t%f\n", m.Key, m.Score)
	}
	if len(result.Quarantined) > 0 {
		fmt.Fprintf(w, "quarantined shards: %s\n", strings.Join(result.Quarantined, ", "))
	}
	return nil
}
