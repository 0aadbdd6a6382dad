// Package main is the entry point for the tgram CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/flemzord/tgram/internal/core"
	"github.com/flemzord/tgram/pkg/app"

	// Compiled-in modules.
	_ "github.com/flemzord/tgram/internal/gateway"
	_ "github.com/flemzord/tgram/internal/telemetry"
	_ "github.com/flemzord/tgram/modules/bot/telegram"
	_ "github.com/flemzord/tgram/modules/scheduler"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "tgram",
		Short:         "Run Telegram bots built from configurable modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file if it exists")
	root.AddCommand(versionCmd(), startCmd(), configCmd())
	return root
}

// loadEnvFile exports the variables of path without overriding the ones
// already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tgram %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	var params app.RunParams
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start tgram with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params.Version = version
			return app.Run(cmd.Context(), params)
		},
	}
	cmd.Flags().StringVarP(&params.ConfigPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&params.LogLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and provision every module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params app.RunParams
			if len(args) == 1 {
				params.ConfigPath = args[0]
			}
			ids, err := app.Check(params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}
