// cmd/sparkctl/main.go
// One-shot job runner for cron and manual operations

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sonuprasad23/spark/internal/app"
	"github.com/sonuprasad23/spark/internal/common/logger"
	"github.com/sonuprasad23/spark/internal/config"
	"github.com/sonuprasad23/spark/internal/scheduler"
)

var jobNames = []string{
	scheduler.JobWeeklyMatches,
	scheduler.JobAdvanceDays,
	scheduler.JobExpireRooms,
	scheduler.JobArchiveRooms,
	scheduler.JobExpireMatches,
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	v := viper.New()

	root := &cobra.Command{
		Use:          "sparkctl",
		Short:        "Operate the SPARK matching engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			if configFile == "" {
				return nil
			}
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config %s: %w", configFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")

	root.AddCommand(newRunCmd(v), newJobsCmd())
	return root
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:       "run <job>",
		Short:     "Run one job and print its summary",
		Long:      "Run one job and print its summary as JSON.\n\nJobs: " + strings.Join(jobNames, ", "),
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: jobNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log, err := logger.New(cfg.Environment, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer a.Close()

			return runJob(ctx, a.Runner, args[0], cmd, log)
		},
	}
}

func runJob(ctx context.Context, runner *scheduler.Runner, name string, cmd *cobra.Command, log *zap.Logger) error {
	summary, err := runner.Run(ctx, name)
	if summary != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(summary); encErr != nil {
			log.Warn("failed to print summary", zap.Error(encErr))
		}
	}
	return err
}

func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the jobs run accepts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range jobNames {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
