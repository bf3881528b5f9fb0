package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/obsidianstack/licenseaudit/internal/audit"
	"github.com/obsidianstack/licenseaudit/internal/config"
	"github.com/obsidianstack/licenseaudit/internal/printer"
	"github.com/obsidianstack/licenseaudit/internal/report"
	"github.com/obsidianstack/licenseaudit/internal/snapshot"
)

var (
	runConfigPath string
	runOutputDir  string
	runPlatforms  []string
	runWatch      bool
	runTop        int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Audit every configured platform and write the result artifacts",
	Long: `Fetch each platform snapshot in parallel, classify the license of the newest
build of every package and write:

  valid_licenses_data.json     per-platform valid/invalid counts
  sorted_license_counter.json  global license counts, highest first
  license_counter.json         global license counts as an object
  license_audit.prom           Prometheus textfile gauges

A platform whose snapshot cannot be fetched or decoded is reported with zero
counts; only a failure to write the artifacts fails the run.

Examples:
  # Audit the default platforms of conda-forge
  licenseaudit run

  # Audit two platforms into ./out
  licenseaudit run --platform linux-64 --platform noarch --output-dir out

  # Re-run the audit whenever the config file changes
  licenseaudit run --config licenseaudit.yaml --watch`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "licenseaudit.yaml", "Path to the config file (defaults apply when it does not exist)")
	runCmd.Flags().StringVarP(&runOutputDir, "output-dir", "o", "", "Directory for result artifacts (overrides output_dir)")
	runCmd.Flags().StringArrayVarP(&runPlatforms, "platform", "p", nil, "Platform to audit, repeatable (overrides platforms)")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Re-run the audit each time the config file changes")
	runCmd.Flags().IntVar(&runTop, "top", 20, "Rows in the console license table (0 = all)")

	rootCmd.AddCommand(runCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runConfigPath, runOutputDir, runPlatforms)
	if err != nil {
		return printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Fix %s or the command-line overrides", runConfigPath)},
		)
	}

	slog.SetDefault(newLogger(cfg))

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runOnce(ctx, cfg, runTop); err != nil {
		return err
	}
	if !runWatch {
		return nil
	}

	printer.Step("Watching %s for changes (Ctrl+C to stop)", runConfigPath)
	return config.Watch(ctx, runConfigPath, func(updated *config.Config) {
		applyOverrides(updated, runOutputDir, runPlatforms)
		if err := updated.Validate(); err != nil {
			slog.Error("config: reloaded config rejected", "err", err)
			return
		}
		slog.SetDefault(newLogger(updated))
		if err := runOnce(ctx, updated, runTop); err != nil {
			slog.Error("audit: run after reload failed", "err", err)
		}
	})
}

// loadConfig reads path and layers the command-line overrides on top.
func loadConfig(path, outputDir string, platforms []string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, outputDir, platforms)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, outputDir string, platforms []string) {
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if len(platforms) > 0 {
		cfg.Platforms = append([]string(nil), platforms...)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// runOnce performs one full audit: load, classify and merge every platform,
// then write the artifacts and print the summary.
func runOnce(ctx context.Context, cfg *config.Config, top int) error {
	start := time.Now()

	runID := uuid.NewString()
	prev := slog.Default()
	slog.SetDefault(prev.With("run_id", runID))
	defer slog.SetDefault(prev)

	slog.Info("audit: run starting",
		"channel", cfg.ChannelURL,
		"platforms", len(cfg.Platforms),
		"compressed", cfg.Compressed,
		"workers", cfg.Workers,
	)

	loader, err := snapshot.New(cfg)
	if err != nil {
		return printer.Error("cannot create snapshot loader", err.Error(), nil)
	}
	defer loader.Close()

	runner := audit.NewRunner(loader, cfg.Workers)
	runner.OnPlatform = func(res audit.PlatformResult) {
		if res.Unavailable() {
			printer.Unavailable(res.Summary.Platform, res.Err)
			return
		}
		printer.Platform(res.Summary.Platform, res.Summary.Valid, res.Summary.Invalid)
	}

	printer.Step("Auditing %d platforms from %s", len(cfg.Platforms), cfg.ChannelURL)
	totals, err := runner.Run(ctx, cfg.Platforms)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return printer.Error("audit interrupted", "No artifacts were written for the incomplete run.", nil)
		}
		return printer.Error("audit failed", err.Error(), nil)
	}

	paths, err := report.NewWriter(cfg.OutputDir, cfg.Outputs).Write(totals)
	if err != nil {
		slog.Error("report: write failed", "err", err)
		return printer.Error(
			"failed to write audit results",
			err.Error(),
			[]string{fmt.Sprintf("Check that %s is writable", cfg.OutputDir)},
		)
	}

	if err := report.RenderTable(printer.Writer(), totals.Sorted(), top); err != nil {
		slog.Warn("report: console table failed", "err", err)
	}
	for _, p := range paths {
		printer.Success("Wrote %s", p)
	}

	elapsed := time.Since(start)
	slog.Info("audit: run complete",
		"platforms", len(totals.Platforms),
		"unavailable", len(totals.Unavailable),
		"licenses", len(totals.Counts),
		"elapsed", elapsed,
	)
	printer.Elapsed(elapsed)
	return nil
}
