// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubenrich/internal/dataset"
	"github.com/pdiddy/pubenrich/internal/enrich"
	"github.com/pdiddy/pubenrich/internal/logger"
	"github.com/pdiddy/pubenrich/internal/uniprot"
)

var genesCmd = &cobra.Command{
	Use:   "genes",
	Short: "Fill empty accessions from the rows' gene names",
	Long: `Genes looks up the Gene_Name of every row whose accession column is empty
in UniProtKB by primary gene name, preferring reviewed entries and falling
back to unreviewed ones. The accession, Protein_ID and Protein_Name are
filled where still empty. Results, including names with no match, are
cached.`,
	RunE: runGenes,
}

func init() {
	f := genesCmd.Flags()
	datasetFlags(genesCmd, "genes")
	f.Int("batch", 50, "gene names per search")
	f.Duration("sleep", 400*time.Millisecond, "pause after each search")
	f.String("cache-db", defaultCacheDB, "cache SQLite path")

	bindFlags(f, map[string]string{
		"genes.batch":    "batch",
		"genes.sleep":    "sleep",
		"genes.cache_db": "cache-db",
	})

	rootCmd.AddCommand(genesCmd)
}

func runGenes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gc := cfg.Genes
	if err := requireDataset(gc.Dataset); err != nil {
		return err
	}

	db, err := dataset.Open(gc.Dataset)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := openCache(gc.CacheDB)
	if err != nil {
		return err
	}
	defer store.Close()

	searcher := uniprot.NewGeneSearcher(newHTTPClient(cfg.HTTP, "uniprot"), cfg.Services.UniProt)
	if gc.Batch > 0 {
		searcher.Batch = gc.Batch
	}
	searcher.Delay = gc.Delay

	g := enrich.NewGeneNames(gc, db, store, searcher)
	g.Out = cmd.OutOrStdout()
	g.Log = logger.Component(log, "genes")

	start := time.Now()
	summary, err := g.Run(cmd.Context())
	finishPass("genes", summary.Updated, start)

	printSummary(cmd.OutOrStdout(), summary.FailedBatches > 0,
		"Done. Looked up %d gene names (%d cached, %d searched, %d found). Updated %d rows. %d batches skipped.",
		summary.Processed, summary.CacheHits, summary.Searched, summary.Found, summary.Updated, summary.FailedBatches)
	return err
}
