// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubenrich/internal/pubmed"
	"github.com/pdiddy/pubenrich/internal/pubtator"
	"github.com/pdiddy/pubenrich/internal/uniprot"
	"github.com/pdiddy/pubenrich/pkg/types"
)

const defaultCacheDB = ".cache/uniprot_cache.sqlite"

func setDefaults() {
	viper.SetDefault("http.timeout", 60*time.Second)
	viper.SetDefault("http.retries", 3)
	viper.SetDefault("http.backoff_base", time.Second)
	viper.SetDefault("http.user_agent", "pubenrich/"+version)

	viper.SetDefault("services.pubtator", pubtator.DefaultBaseURL)
	viper.SetDefault("services.uniprot", uniprot.DefaultBaseURL)
	viper.SetDefault("services.eutils", pubmed.DefaultBaseURL)
}

// bindFlags binds each viper key to the named flag.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", flag, err))
		}
	}
}

// datasetFlags registers the flags that locate the predictions table and
// binds them under section.
func datasetFlags(cmd *cobra.Command, section string) {
	f := cmd.Flags()
	f.String("db", "", "SQLite dataset path")
	f.String("table", "predictions", "predictions table name")
	f.String("pmid-col", "PMID", "document ID column")
	f.String("ac-col", "UniProtKB_accessions", "protein accession column")
	bindFlags(f, map[string]string{
		section + ".dataset.db":       "db",
		section + ".dataset.table":    "table",
		section + ".dataset.pmid_col": "pmid-col",
		section + ".dataset.ac_col":   "ac-col",
	})
}

// loadConfig decodes the effective configuration from flags, environment
// and config file.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.Biblio.APIKey = ncbi.APIKey
	cfg.Biblio.Email = ncbi.Email
	return cfg, nil
}

func requireDataset(d types.DatasetConfig) error {
	if d.Path == "" {
		return fmt.Errorf("--db is required (or set dataset.db in the config file)")
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints the configuration every command would run with after
merging flag defaults, the config file and PUBENRICH_ environment variables.
Credentials are never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encoding configuration: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
