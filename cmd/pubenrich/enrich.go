// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubenrich/internal/dataset"
	"github.com/pdiddy/pubenrich/internal/enrich"
	"github.com/pdiddy/pubenrich/internal/logger"
	"github.com/pdiddy/pubenrich/internal/pubtator"
	"github.com/pdiddy/pubenrich/internal/uniprot"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill protein accessions, names and gene symbols from PubTator and UniProt",
	Long: `Enrich pages through rows whose accession column is empty, fetches PubTator
gene annotations for each document, maps the gene IDs to UniProt accessions
and looks up accession details. Lookups go through the cache first. Values are
written only into empty fields and committed every --commit-every documents.`,
	RunE: runEnrich,
}

func init() {
	f := enrichCmd.Flags()
	datasetFlags(enrichCmd, "enrich")
	f.Int("batch", 50, "documents per PubTator request")
	f.Duration("sleep", 400*time.Millisecond, "pause between PubTator requests")
	f.Int("limit", 0, "stop after N documents (0 = all)")
	f.Int("commit-every", 200, "commit staged updates every N documents")
	f.String("cache-db", defaultCacheDB, "cache SQLite path")
	f.Int("uniprot-batch", 200, "gene IDs per mapping job")
	f.Int("detail-batch", 50, "accessions per detail query")
	f.Duration("uniprot-sleep", 400*time.Millisecond, "pause after each detail query")
	f.Bool("store-gene-map", false, "store raw PubTator gene IDs in a side table")
	f.String("gene-map-table", "pubtator_gene_map", "side table name")

	bindFlags(f, map[string]string{
		"enrich.batch":          "batch",
		"enrich.sleep":          "sleep",
		"enrich.limit":          "limit",
		"enrich.commit_every":   "commit-every",
		"enrich.cache_db":       "cache-db",
		"enrich.uniprot_batch":  "uniprot-batch",
		"enrich.detail_batch":   "detail-batch",
		"enrich.uniprot_sleep":  "uniprot-sleep",
		"enrich.store_gene_map": "store-gene-map",
		"enrich.gene_map_table": "gene-map-table",
	})

	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ec := cfg.Enrich
	if err := requireDataset(ec.Dataset); err != nil {
		return err
	}

	db, err := dataset.Open(ec.Dataset)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := openCache(ec.CacheDB)
	if err != nil {
		return err
	}
	defer store.Close()

	annotations := pubtator.NewClient(newHTTPClient(cfg.HTTP, "pubtator"), cfg.Services.PubTator)

	up := newHTTPClient(cfg.HTTP, "uniprot")
	mapper := uniprot.NewMapper(up, cfg.Services.UniProt)
	if ec.MappingBatch > 0 {
		mapper.ChunkSize = ec.MappingBatch
	}
	mapper.Log = logger.Component(log, "mapper")
	mapper.OnJob = func(s uniprot.JobState) { metered.ObserveJob(string(s)) }

	details := uniprot.NewDetailFetcher(up, cfg.Services.UniProt)
	if ec.DetailBatch > 0 {
		details.Batch = ec.DetailBatch
	}
	details.Delay = ec.MappingDelay

	p := enrich.NewPipeline(ec, db, store, annotations, mapper, details)
	p.Out = cmd.OutOrStdout()
	p.Log = logger.Component(log, "enrich")

	start := time.Now()
	summary, err := p.Run(cmd.Context())
	finishPass("enrich", summary.Updated, start)

	printSummary(cmd.OutOrStdout(), summary.FailedBatches > 0,
		"Done. Processed %d PMIDs. Updated %d rows. (%d mapping jobs, %d failed; %d batches skipped; %d deferred)",
		summary.Processed, summary.Updated, summary.MappingJobs, summary.MappingFailures, summary.FailedBatches, summary.Deferred)
	return err
}
