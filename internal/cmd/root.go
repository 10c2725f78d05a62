// Package cmd implements the bcifpipe command line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/structbio/bcifpipe/internal/config"
	"github.com/structbio/bcifpipe/internal/observability"
)

// versionInfo holds build-time version metadata injected via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
// Called from main with ldflags-injected values.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	flagLogLevel   string
	flagLogFormat  string
	flagStatusAddr string
)

// runtimeCfg is the loaded process configuration, available to all
// commands after PersistentPreRunE.
var runtimeCfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "bcifpipe",
	Short: "Incremental batch conversion of structural records to BinaryCIF",
	Long: `bcifpipe converts archives of structural records into BinaryCIF.

A batch run is described by a YAML or JSON job manifest: the source archive
(local directory, HTTP base URL, or S3 bucket), the ID list or holdings file
driving it, the destination layout, and the converter binary. Runs are
incremental: records whose output is already newer than the source are
skipped, so re-running a job converts only what changed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		overrides := map[string]any{}
		if flagLogLevel != "" {
			overrides["logging"] = map[string]any{"level": flagLogLevel}
		}
		if flagLogFormat != "" {
			lo, _ := overrides["logging"].(map[string]any)
			if lo == nil {
				lo = map[string]any{}
			}
			lo["format"] = flagLogFormat
			overrides["logging"] = lo
		}
		if flagStatusAddr != "" {
			overrides["server"] = map[string]any{"addr": flagStatusAddr}
		}

		cfg, err := config.Load(cmd.Context(), overrides)
		if err != nil {
			return fmt.Errorf("load runtime config: %w", err)
		}
		runtimeCfg = cfg
		return observability.Init(cfg.Logging.Level, cfg.Logging.Format)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (console|json)")
	rootCmd.PersistentFlags().StringVar(&flagStatusAddr, "status-addr", "", "Serve /healthz and /progress on this address while a batch runs")

	rootCmd.Version = versionInfo.Version
	rootCmd.SetVersionTemplate(`{{printf "%s " .Name}}{{printf "%s\n" .Version}}`)
}

// Execute runs the CLI with the given context.
func Execute(ctx context.Context) error {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)",
		versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	defer observability.Sync()
	return rootCmd.ExecuteContext(ctx)
}
