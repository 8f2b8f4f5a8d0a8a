// Package cmd provides the vectorcorectl CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dreamware/vectorcore/pkg/version"
)

// storeOpts are the object store connection flags shared by every
// subcommand that talks to a configured deployment. Each field left
// empty falls back to config.FromEnv's corresponding environment
// variable.
var storeOpts struct {
	endpoint  string
	accessKey string
	secretKey string
	region    string
	bucket    string
	prefix    string

	cacheDir           string
	cacheCapacityBytes int64
}

// NewRootCmd creates the root command for vectorcorectl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vectorcorectl",
		Short:        "Operate a vectorcore deployment from the command line",
		Long:         `vectorcorectl drives a vectorcore core directly: create buckets and indexes, ingest vectors, run a build cycle, query, and delete — without standing up the HTTP surface.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("vectorcorectl version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&storeOpts.endpoint, "endpoint", "", "Object store endpoint URL (default: $VECTORCORE_ENDPOINT)")
	cmd.PersistentFlags().StringVar(&storeOpts.accessKey, "access-key", "", "Object store access key (default: $VECTORCORE_ACCESS_KEY)")
	cmd.PersistentFlags().StringVar(&storeOpts.secretKey, "secret-key", "", "Object store secret key (default: $VECTORCORE_SECRET_KEY)")
	cmd.PersistentFlags().StringVar(&storeOpts.region, "region", "", "Object store region (default: $VECTORCORE_REGION)")
	cmd.PersistentFlags().StringVar(&storeOpts.bucket, "bucket", "", "Object store bucket name (default: $VECTORCORE_BUCKET)")
	cmd.PersistentFlags().StringVar(&storeOpts.prefix, "prefix", "", "Object key prefix (default: $VECTORCORE_PREFIX)")
	cmd.PersistentFlags().StringVar(&storeOpts.cacheDir, "cache-dir", "", "Local directory for the shard artifact cache (default: a temp dir)")
	cmd.PersistentFlags().Int64Var(&storeOpts.cacheCapacityBytes, "cache-capacity-bytes", 0, "Shard artifact cache byte budget (default: $VECTORCORE_CACHE_CAPACITY_BYTES or 4 GiB)")

	cmd.AddCommand(newBucketCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newIndexerCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
