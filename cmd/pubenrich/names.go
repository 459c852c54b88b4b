// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubenrich/internal/dataset"
	"github.com/pdiddy/pubenrich/internal/logger"
	"github.com/pdiddy/pubenrich/internal/names"
	"github.com/pdiddy/pubenrich/internal/uniprot"
)

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "Fill protein and gene names for rows that already have an accession",
	Long: `Names looks up the first accession of every row whose Protein_Name or
Gene_Name is empty, using a pool of parallel workers and a shared cache. The
cache is snapshotted to --cache and results are committed every
--checkpoint-interval rows.`,
	RunE: runNames,
}

func init() {
	f := namesCmd.Flags()
	datasetFlags(namesCmd, "names")
	f.Int("workers", 10, "parallel lookups")
	f.Int("checkpoint-interval", 1000, "commit and snapshot every N rows")
	f.String("cache", ".cache/protein_cache.json.gz", "name cache snapshot (.gz compresses)")

	bindFlags(f, map[string]string{
		"names.workers":             "workers",
		"names.checkpoint_interval": "checkpoint-interval",
		"names.cache":               "cache",
	})

	rootCmd.AddCommand(namesCmd)
}

func runNames(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	nc := cfg.Names
	if err := requireDataset(nc.Dataset); err != nil {
		return err
	}

	db, err := dataset.Open(nc.Dataset)
	if err != nil {
		return err
	}
	defer db.Close()

	entries := uniprot.NewEntryClient(newHTTPClient(cfg.HTTP, "uniprot"), cfg.Services.UniProt)
	e := names.NewEnricher(nc, db, entries)
	e.Out = cmd.OutOrStdout()
	e.Log = logger.Component(log, "names")

	start := time.Now()
	stats, err := e.Run(cmd.Context())
	finishPass("names", int(stats.Updated), start)

	printSummary(cmd.OutOrStdout(), stats.Errors > 0,
		"Done. %d rows: %d cached, %d fetched, %d not found, %d errors. Updated %d rows.",
		stats.Rows, stats.CacheHits, stats.Fetched, stats.NotFound, stats.Errors, stats.Updated)
	return err
}
