package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"s3keyfinder/config"
	"s3keyfinder/internal/action"
	"s3keyfinder/internal/audit"
	"s3keyfinder/internal/finder"
	"s3keyfinder/internal/logging"
	"s3keyfinder/internal/models"
	"s3keyfinder/internal/s3client"
	"s3keyfinder/pkg/utils"
)

// storeClient is everything a run may ask of the bucket.
type storeClient interface {
	finder.Lister
	action.Store
}

var newStoreClient = func(ctx context.Context, c *config.Config) (storeClient, error) {
	client, err := s3client.New(ctx, c)
	if err != nil {
		return nil, err
	}
	return client, nil
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find objects matching size and key filters, optionally deleting or renaming them",
	Long: `Find objects in the S3 bucket whose size and key match the given filters.

The command will:
- List every object in the bucket page by page (or read keys from --source-file)
- Keep objects within the size range whose key matches the pattern
- Write the matches to <run-id>_find.csv in the output directory
- Optionally run DELETE or RENAME on the matches in batches, recording each change
  to <run-id>_delete.csv or <run-id>_rename.csv
- Print a JSON summary of the run

RENAME settings (--set key=value):
  find            regular expression matched against each key (required)
  replace         replacement, may reference groups as ${1} (required, may be empty)
  deleteSource    delete the original keys after a successful copy (true/false)
  maxConcurrency  maximum concurrent copies within a batch

WARNING: DELETE, and RENAME with deleteSource=true, are irreversible.`,
	Example: `  # List objects larger than 1 MiB under logs/
  s3keyfinder find --min-size 1048576 --pattern '^logs/'

  # Preview deleting empty objects
  s3keyfinder find --max-size 0 --action DELETE --dry-run

  # Move tmp/ to archive/tmp/ without a prompt
  s3keyfinder find --pattern '^tmp/' --action RENAME \
    --set find='^tmp/' --set replace='archive/tmp/' --set deleteSource=true --confirm

  # Delete keys listed by an earlier run
  s3keyfinder find --source-file 1b4e28ba-2fa1-11d2-883f-0016d3cca427_find.csv --action DELETE`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runFind(cmd); err != nil {
			utils.PrintError(err, "find")
			return err
		}
		return nil
	},
}

func runFind(cmd *cobra.Command) error {
	effective, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(effective.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), level)

	if err := effective.Validate(); err != nil {
		return err
	}

	var actionCfg action.Config
	if effective.HasAction() {
		if actionCfg, err = buildActionConfig(effective); err != nil {
			return err
		}
	}

	confirm, _ := cmd.Flags().GetBool("confirm")
	if effective.HasAction() && !actionCfg.DryRun && !confirm {
		if !confirmAction(cmd.InOrStdin(), cmd.ErrOrStderr(), actionCfg.Name, effective.BucketName) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Operation cancelled.")
			return nil
		}
	}

	timeout, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancelTimeout()
	}

	var (
		lister finder.Lister
		store  action.Store
	)
	if effective.NeedsStore() {
		client, err := newStoreClient(ctx, effective)
		if err != nil {
			return err
		}
		lister, store = client, client
	}

	writer := audit.NewWriter(effective.OutputDir, audit.NewRunID())
	logger = logger.With("run_id", writer.RunID())

	if isVerbose(cmd) {
		logger.Debug("Starting run",
			"bucket", effective.BucketName,
			"source_file", effective.SourceFile,
			"output_dir", effective.OutputDir,
			"action", actionCfg.Name,
		)
	}

	start := time.Now()
	result, err := run(ctx, effective, actionCfg, lister, store, writer, logger)
	if err != nil {
		return err
	}
	result.OperationTime = time.Since(start).Round(time.Millisecond).String()

	if err := utils.PrintJSON(result); err != nil {
		return err
	}

	if isVerbose(cmd) {
		logger.Debug("Find operation completed successfully")
	}
	return nil
}

func run(
	ctx context.Context,
	c *config.Config,
	actionCfg action.Config,
	lister finder.Lister,
	store action.Store,
	writer *audit.Writer,
	logger *slog.Logger,
) (*models.RunResult, error) {
	f, err := finder.New(lister, writer, finder.Options{
		Bucket:     c.BucketName,
		MinSize:    c.MinSize,
		MaxSize:    c.MaxSize,
		KeyPattern: c.KeyPattern,
		SourceFile: c.SourceFile,
		RetryDelay: finder.DefaultRetryDelay,
	}, logger)
	if err != nil {
		return nil, err
	}

	found, err := f.Find(ctx)
	if err != nil {
		return nil, err
	}

	total := found.Matches.TotalSize()
	result := &models.RunResult{
		RunID:          writer.RunID(),
		BucketName:     c.BucketName,
		Source:         found.Source,
		MatchCount:     found.Matches.Len(),
		TotalSizeBytes: total,
		TotalSizeHuman: utils.FormatBytes(total),
		FindFile:       found.FilePath,
	}
	if found.FilePath != "" {
		logger.Info("Matches written", "file", found.FilePath, "count", result.MatchCount)
	}

	switch {
	case !c.HasAction():
		return result, nil
	case result.MatchCount == 0:
		logger.Info("No matching keys, skipping action", "action", actionCfg.Name)
		return result, nil
	}

	pipeline := action.NewPipeline(store, writer, c.BucketName, logger)
	actionResult, err := pipeline.Invoke(ctx, found.Matches.Keys(), actionCfg)
	if err != nil {
		if actionResult != nil {
			logger.Error("Action stopped early", "audit_file", actionResult.AuditFile, "error", err)
		}
		return nil, fmt.Errorf("failed to run %s action: %w", actionCfg.Name, err)
	}
	result.Action = actionResult

	logger.Info("Action finished",
		"action", actionResult.Action,
		"succeeded", actionResult.Succeeded,
		"failed", actionResult.Failed,
		"audit_file", actionResult.AuditFile,
	)
	return result, nil
}

// buildConfig overlays explicitly set flags on the loaded configuration.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	effective := *cfg
	effective.Action.Settings = maps.Clone(cfg.Action.Settings)
	effective.BucketName = getBucketName(cmd)

	flags := cmd.Flags()
	if flags.Changed("source-file") {
		effective.SourceFile, _ = flags.GetString("source-file")
	}
	if flags.Changed("min-size") {
		effective.MinSize, _ = flags.GetInt64("min-size")
	}
	if flags.Changed("max-size") {
		effective.MaxSize, _ = flags.GetInt64("max-size")
	}
	if flags.Changed("pattern") {
		effective.KeyPattern, _ = flags.GetString("pattern")
	}
	if flags.Changed("output-dir") {
		effective.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("action") {
		effective.Action.Name, _ = flags.GetString("action")
	}
	if flags.Changed("dry-run") {
		effective.Action.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("batch-size") {
		effective.Action.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("set") {
		pairs, _ := flags.GetStringArray("set")
		settings, err := parseSettings(pairs)
		if err != nil {
			return nil, err
		}
		if effective.Action.Settings == nil {
			effective.Action.Settings = make(map[string]string, len(settings))
		}
		maps.Copy(effective.Action.Settings, settings)
	}
	if isVerbose(cmd) {
		effective.LogLevel = "debug"
	}

	return &effective, nil
}

func buildActionConfig(c *config.Config) (action.Config, error) {
	name, err := action.ParseName(c.Action.Name)
	if err != nil {
		return action.Config{}, err
	}

	actionCfg := action.Config{
		Name:       name,
		DryRun:     c.Action.DryRun,
		BatchSize:  c.Action.BatchSize,
		Settings:   c.Action.Settings,
		BatchDelay: action.DefaultBatchDelay,
	}
	if err := actionCfg.Validate(); err != nil {
		return action.Config{}, fmt.Errorf("invalid %s configuration: %w", name, err)
	}
	return actionCfg, nil
}

// parseSettings turns key=value pairs into a map, splitting on the first "=".
func parseSettings(pairs []string) (map[string]string, error) {
	settings := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q, expected key=value", pair)
		}
		settings[key] = value
	}
	return settings, nil
}

func confirmAction(in io.Reader, out io.Writer, name action.Name, bucket string) bool {
	verb := "delete"
	if name == action.Rename {
		verb = "rename"
	}
	fmt.Fprintf(out, "WARNING: This will %s the matching objects in bucket '%s'\n", verb, bucket)
	fmt.Fprint(out, "Are you sure? (yes/no): ")

	var response string
	fmt.Fscanln(in, &response)
	return response == "yes" || response == "y" || response == "YES"
}

func init() {
	findCmd.Flags().String("source-file", "", "Read keys (and optional sizes) from this CSV file instead of listing the bucket")
	findCmd.Flags().Int64("min-size", -1, "Minimum object size in bytes, inclusive (-1 for no minimum)")
	findCmd.Flags().Int64("max-size", -1, "Maximum object size in bytes, inclusive (-1 for no maximum)")
	findCmd.Flags().StringP("pattern", "p", "", "Regular expression the object key must match")
	findCmd.Flags().StringP("output-dir", "o", ".", "Directory for the CSV audit files")
	findCmd.Flags().StringP("action", "a", "", "Action to apply to the matches: DELETE or RENAME")
	findCmd.Flags().Bool("dry-run", false, "Record what the action would do without changing the bucket")
	findCmd.Flags().Int("batch-size", action.DefaultBatchSize, "Number of keys per action batch")
	findCmd.Flags().StringArray("set", nil, "Action setting as key=value (repeatable)")
	findCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	findCmd.Flags().Int("timeout", 0, "Timeout in seconds for the whole run (0 for no timeout)")

	findCmd.SetUsageTemplate(`Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`)
}
