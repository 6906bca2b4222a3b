package cmd

import (
	"github.com/spf13/cobra"

	"s3keyfinder/config"
)

var (
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "s3keyfinder",
	Short: "Find S3 objects by size and key pattern and act on them in bulk",
	Long: `s3keyfinder is a command-line tool for locating objects in an S3 bucket.
It filters a bucket listing by object size and key pattern, records the matches to a CSV file,
and can then delete or rename the matched objects in batches with a full audit trail.
Configuration is loaded from .env file, an optional YAML file (CONFIG_FILE) or environment variables`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(config *config.Config) error {
	cfg = config
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(findCmd)

	rootCmd.PersistentFlags().StringP("bucket", "b", "", "Override bucket name from config")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
}

func getBucketName(cmd *cobra.Command) string {
	bucket, _ := cmd.Flags().GetString("bucket")
	if bucket != "" {
		return bucket
	}
	return cfg.BucketName
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}
