package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dreamware/vectorcore/internal/ingest"
	"github.com/dreamware/vectorcore/internal/model"
)

func newIngestCmd() *cobra.Command {
	var bucket, indexName, file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Submit a slice of vectors read from a JSONL file (or stdin)",
		Long: `Each line of the input must be a JSON object with "key", "embedding",
and an optional "metadata" object, e.g.:
  {"key": "doc-1", "embedding": [0.1, 0.2], "metadata": {"category": "a"}}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closeFn, err := openIngestInput(file)
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := decodeVectorRecordsJSONL(r)
			if err != nil {
				return err
			}

			pipeline, err := newPipeline(cmd.Context(), resolveConfig())
			if err != nil {
				return err
			}

			result, err := runIngest(cmd.Context(), pipeline, bucket, indexName, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote slice %q (%d vectors)\n", result.SliceID, result.VectorCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket name (required)")
	cmd.Flags().StringVar(&indexName, "index", "", "Index name (required)")
	cmd.Flags().StringVar(&file, "file", "", "Path to a JSONL file of vector records (default: stdin)")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

func openIngestInput(file string) (io.Reader, func(), error) {
	if file == "" || file == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %q: %w", file, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func decodeVectorRecordsJSONL(r io.Reader) ([]model.VectorRecord, error) {
	var records []model.VectorRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec model.VectorRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decoding vector record: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vector records: %w", err)
	}
	return records, nil
}

func runIngest(ctx context.Context, pipeline *ingest.Pipeline, bucket, index string, records []model.VectorRecord) (ingest.PutVectorsResult, error) {
	return pipeline.PutVectors(ctx, bucket, index, records)
}
