// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubenrich/internal/dataset"
	"github.com/pdiddy/pubenrich/internal/enrich"
	"github.com/pdiddy/pubenrich/internal/logger"
	"github.com/pdiddy/pubenrich/internal/pubmed"
	"github.com/pdiddy/pubenrich/internal/pubtator"
)

var biblioCmd = &cobra.Command{
	Use:   "biblio",
	Short: "Fill journal, authors and publication date from PubMed",
	Long: `Biblio pages through rows with an empty Journal, Authors, Year, Month or
PublicationDate and fills them from PubMed ESummary, caching every record.
With --with-text, empty Title and Abstract fields are filled from PubTator
passages as well. Credentials in .secrets/ncbi-api-key and .secrets/ncbi-email
are sent when present.`,
	RunE: runBiblio,
}

func init() {
	f := biblioCmd.Flags()
	datasetFlags(biblioCmd, "biblio")
	f.Int("batch", 200, "documents per ESummary request")
	f.Duration("sleep", pubmed.DefaultDelay, "pause after each ESummary request")
	f.Int("limit", 0, "stop after N documents (0 = all)")
	f.String("cache-db", defaultCacheDB, "cache SQLite path")
	f.Bool("with-text", false, "also fill Title and Abstract from PubTator")

	bindFlags(f, map[string]string{
		"biblio.batch":     "batch",
		"biblio.sleep":     "sleep",
		"biblio.limit":     "limit",
		"biblio.cache_db":  "cache-db",
		"biblio.with_text": "with-text",
	})

	rootCmd.AddCommand(biblioCmd)
}

func runBiblio(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	bc := cfg.Biblio
	if err := requireDataset(bc.Dataset); err != nil {
		return err
	}

	db, err := dataset.Open(bc.Dataset)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := openCache(bc.CacheDB)
	if err != nil {
		return err
	}
	defer store.Close()

	pm := pubmed.NewClient(newHTTPClient(cfg.HTTP, "eutils"), cfg.Services.EUtils)
	pm.APIKey = bc.APIKey
	pm.Email = bc.Email
	pm.Delay = bc.Delay

	var annotations *pubtator.Client
	if bc.WithText {
		annotations = pubtator.NewClient(newHTTPClient(cfg.HTTP, "pubtator"), cfg.Services.PubTator)
	}

	b := enrich.NewBiblio(bc, db, store, pm, annotations)
	b.Out = cmd.OutOrStdout()
	b.Log = logger.Component(log, "biblio")

	start := time.Now()
	summary, err := b.Run(cmd.Context())
	finishPass("biblio", summary.Updated, start)

	printSummary(cmd.OutOrStdout(), summary.FailedBatches > 0,
		"Done. Processed %d PMIDs (%d cached, %d fetched). Updated %d rows. %d batches skipped.",
		summary.Processed, summary.CacheHits, summary.Fetched, summary.Updated, summary.FailedBatches)
	return err
}
