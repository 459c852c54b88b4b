// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubenrich/internal/accession"
	"github.com/pdiddy/pubenrich/internal/dataset"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge prediction rows from a JSONL file and reassign row accessions",
	Long: `Merge reads one prediction per line from --input, normalizes source labels
and curated-resource fields, drops exact duplicates, replaces existing rows
with the same (PMID, Source) pair, and rewrites the AC column of the whole
table. Merging the same file twice leaves the table unchanged.

With no --input, only the row accessions are reassigned.`,
	RunE: runMerge,
}

func init() {
	f := mergeCmd.Flags()
	datasetFlags(mergeCmd, "merge")
	f.String("input", "", "JSONL file of predictions")
	f.String("ac-prefix", accession.DefaultPrefix, "row accession prefix")

	bindFlags(f, map[string]string{
		"merge.input":     "input",
		"merge.ac_prefix": "ac-prefix",
	})

	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mc := cfg.Merge
	if err := requireDataset(mc.Dataset); err != nil {
		return err
	}

	db, err := dataset.Open(mc.Dataset)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	out := cmd.OutOrStdout()

	if mc.Input == "" {
		n, err := db.AssignAccessions(cmd.Context(), mc.AccessionPrefix)
		if err != nil {
			return err
		}
		finishPass("merge", n, start)
		printSummary(out, false, "Reassigned accessions for %d rows.", n)
		return nil
	}

	rows, err := dataset.ReadPredictionsFile(mc.Input)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Read %d predictions from %s\n", len(rows), mc.Input)

	summary, err := db.Merge(cmd.Context(), rows, mc.AccessionPrefix)
	if err != nil {
		return err
	}
	finishPass("merge", summary.Inserted, start)

	printSummary(out, false,
		"Merged %d rows (%d duplicates dropped, %d replaced). Table now has %d rows.",
		summary.Inserted, summary.Duplicates, summary.Replaced, summary.Total)
	return nil
}
