package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/thunder/internal/cli"
	"github.com/aretw0/thunder/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "thunder",
	Short:         "Thunder turns prompts into runnable web projects",
	Long:          `Thunder asks a model for a project, parses the actions it answers with, builds the file tree and mounts it into a sandbox.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Log pipeline events at debug level")
	rootCmd.PersistentFlags().String("store", "", "Session store: memory, file, redis or sqlite")
	rootCmd.PersistentFlags().String("sandbox", "", "Directory holding one working copy per session")
	rootCmd.PersistentFlags().String("templates", "", "Template library directory (loam)")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Kind, _ = cmd.Flags().GetString("store")
	}
	if cmd.Flags().Changed("sandbox") {
		cfg.Sandbox.Dir, _ = cmd.Flags().GetString("sandbox")
	}
	if cmd.Flags().Changed("templates") {
		cfg.Templates.Dir, _ = cmd.Flags().GetString("templates")
	}
	return cfg, cfg.Validate()
}

// openApp wires an App from flags and config. Call the returned func when done.
func openApp(cmd *cobra.Command) (*cli.App, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	logger, logCloser, err := cli.NewLogger(cfg.Log, debug)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	app, err := cli.NewApp(cfg, logger, cli.WithDebugHooks(debug))
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}
	return app, func() {
		if err := app.Close(); err != nil {
			logger.Warn("Failed to close app", "err", err)
		}
		closeQuietly(logCloser)
	}, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
