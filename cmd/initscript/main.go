// Copyright (c) 2026 Michael D Henderson. All rights reserved.

// Command initscript runs the SQL init scripts of an embedded database once
// and exits. It reads db.url, db.username, db.password and db.init-script from
// a properties file, INITSCRIPT_* environment variables or flags.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mdhender/initscript"
	"github.com/mdhender/initscript/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.New()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "initscript",
		Short: "Run embedded database init scripts",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return nil
			}
			return config.ReadFile(v, configFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, config.Load(v))
		},
		SilenceUsage: true,
	}

	f := rootCmd.Flags()
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "properties, yaml or toml file with db.* settings")
	f.String("db-url", "", "database url; only jdbc:h2 urls are initialized")
	f.String("db-username", "", "database user name")
	f.String("db-password", "", "database password")
	f.String("db-init-script", "", "init scripts separated by ';' (file:<path> or resource name)")
	f.String("resource-dir", ".", "directory resource names are resolved in")
	f.Bool("verbose", false, "enable debug logging")

	// Viper keys use the property names so a properties file, env vars and
	// flags all land on the same key.
	bindFlag := func(viperKey, flagName string) {
		_ = v.BindPFlag(viperKey, f.Lookup(flagName))
	}
	bindFlag(config.KeyURL, "db-url")
	bindFlag(config.KeyUsername, "db-username")
	bindFlag(config.KeyPassword, "db-password")
	bindFlag(config.KeyInitScript, "db-init-script")
	bindFlag(config.KeyResourceDir, "resource-dir")
	bindFlag(config.KeyVerbose, "verbose")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), initscript.Version())
		},
	})

	return rootCmd
}

func run(cmd *cobra.Command, cfg config.Config) error {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg.DB.Logger = logger
	cfg.DB.Resources = os.DirFS(cfg.ResourceDir)

	result, err := initscript.Initialize(cmd.Context(), cfg.DB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !result.Applied {
		fmt.Fprintln(out, "initialization not applicable")
		return nil
	}
	fmt.Fprintf(out, "ran %d scripts, %d failed statements\n", len(result.Scripts), result.Failed())
	return nil
}
