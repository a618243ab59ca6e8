// @title CivicGuru API
// @version 1.0
// @description Voice tutor for civic sense. Sessions run over /ws; history, pins and voice settings over REST.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xpanvictor/civicguru/internal/config"
	"github.com/xpanvictor/civicguru/internal/domains/auth"
	"github.com/xpanvictor/civicguru/pkg/Logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "civicguru",
		Short:         "Voice tutor for civic sense",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	hashCmd := &cobra.Command{
		Use:   "hash-code <code>",
		Short: "Print the bcrypt hash to use as auth.pairing_code_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashCode(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	rootCmd.AddCommand(newServeCommand(), newTalkCommand(), hashCmd)
	return rootCmd
}

// loadEnvironment reads configuration and builds the logger; --debug
// overrides the configured level.
func loadEnvironment(cmd *cobra.Command) (*config.Settings, *Logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}
	logger := Logger.New(cfg.Debug)
	logger.Info("Logger initialized")
	return cfg, logger, nil
}
