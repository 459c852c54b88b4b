// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pubenrich CLI. Each pass over
// the predictions table is a subcommand: enrich, genes, biblio, names and merge.
// cache and config inspect local state.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pubenrich/internal/logger"
	"github.com/pdiddy/pubenrich/internal/metrics"
	"github.com/pdiddy/pubenrich/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// Run-wide state set up in PersistentPreRunE.
var (
	runID   string
	log     zerolog.Logger
	ncbi    secrets.NCBI
	metered = metrics.New()
)

var rootCmd = &cobra.Command{
	Use:   "pubenrich",
	Short: "Enrich a literature-mining predictions table from external databases",
	Long: `pubenrich fills a SQLite predictions table with data from PubTator,
UniProt and PubMed. Every pass reads only rows that still need work, checks a
local cache before any network call, and writes only into empty fields, so
any pass can be interrupted and re-run safely.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		runID = uuid.NewString()
		log = logger.New(logger.Config{
			Level:  viper.GetString("log.level"),
			Pretty: viper.GetBool("log.pretty"),
			RunID:  runID,
		})

		var err error
		ncbi, err = secrets.LoadNCBI(viper.GetString("secrets_dir"), log)
		if err != nil {
			return err
		}
		log.Debug().Str("command", cmd.Name()).Bool("ncbi_api_key", ncbi.APIKey != "").Msg("starting")
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("metrics_file")
		if path == "" {
			return nil
		}
		return metered.WriteTextfile(path)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pubenrich.yaml or ~/.config/pubenrich/pubenrich.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.Bool("log-pretty", false, "human-readable log output")
	pf.String("secrets-dir", secrets.DefaultDir, "directory of credential files")
	pf.String("metrics-file", "", "write Prometheus metrics to this textfile at exit")
	pf.Duration("timeout", 0, "HTTP request timeout (default 60s)")
	pf.Int("retries", 0, "attempts per HTTP request (default 3)")
	pf.Float64("rate-limit", 0, "max requests per second per service (0 = unlimited)")

	bindFlags(pf, map[string]string{
		"log.level":       "log-level",
		"log.pretty":      "log-pretty",
		"secrets_dir":     "secrets-dir",
		"metrics_file":    "metrics-file",
		"http.timeout":    "timeout",
		"http.retries":    "retries",
		"http.rate_limit": "rate-limit",
	})
}

func initConfig() {
	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pubenrich")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pubenrich"))
		}
	}

	setDefaults()
	viper.SetEnvPrefix("PUBENRICH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
