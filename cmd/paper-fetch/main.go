// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-fetch CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-fetch/internal/logging"
	"github.com/pdiddy/paper-fetch/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// logger is built from the log_level setting before any command runs.
	logger = slog.New(slog.DiscardHandler)

	// loadedSecrets holds credentials loaded from the secrets directory.
	loadedSecrets secrets.Secrets
)

// rootCmd is the base command for the paper-fetch CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-fetch",
	Short: "Download PDFs of academic papers from many sources",
	Long: `paper-fetch takes DOIs (from a RIS export, a CSL library, a plain list or
the command line) and tries a prioritized list of open-access APIs, DOI landing
pages and optional mirrors until one yields a valid PDF. Every run writes the
PDFs, per-paper metadata, a text/JSON/HTML report and a SQLite ledger used to
resume interrupted batches.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(os.Stderr, viper.GetString("log_level"))

		s, err := secrets.Load(viper.GetString("secrets_dir"), logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	setDefaults(viper.GetViper())

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-fetch.yaml or ~/.config/paper-fetch/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("secrets-dir", "", "directory of secret files (default .secrets)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("secrets_dir", rootCmd.PersistentFlags().Lookup("secrets-dir"))
}

func initConfig() {
	// A .env file in the working directory may hold PAPER_FETCH_ variables.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-fetch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-fetch"))
		}
	}

	viper.SetEnvPrefix("PAPER_FETCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
