// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"context"
	"fmt"
)

// GeneNameUpdate carries the entry found for one gene symbol.
type GeneNameUpdate struct {
	GeneName    string
	Accession   string
	ProteinID   string
	ProteinName string
}

// EnsureGeneNameColumns adds the columns the gene-name pass reads and writes.
func (d *DB) EnsureGeneNameColumns(ctx context.Context) error {
	return d.EnsureColumns(ctx, d.acc, ColProteinID, ColProteinName, ColGeneName)
}

// GeneNamesMissingAccession lists the distinct trimmed gene symbols of rows
// whose accession field is empty, in sorted order.
func (d *DB) GeneNamesMissingAccession(ctx context.Context) ([]string, error) {
	g := quoteIdent(ColGeneName)
	q := fmt.Sprintf(`SELECT DISTINCT trim(%s) AS gene FROM %s
		WHERE %s AND NOT %s
		ORDER BY gene`, g, quoteIdent(d.table), isEmpty(d.acc), isEmpty(ColGeneName))
	return d.queryStrings(ctx, q)
}

// ApplyGeneNameUpdates fills the accession and protein fields of rows
// carrying each gene symbol whose accession is still empty. It returns the
// rows touched.
func (d *DB) ApplyGeneNameUpdates(ctx context.Context, updates []GeneNameUpdate) (int64, error) {
	var found []GeneNameUpdate
	for _, u := range updates {
		if u.Accession != "" {
			found = append(found, u)
		}
	}
	if len(found) == 0 {
		return 0, nil
	}
	stmtSQL := fmt.Sprintf("UPDATE %s SET %s, %s, %s WHERE trim(%s) = ? AND %s",
		quoteIdent(d.table),
		fillIfEmpty(d.acc), fillIfEmpty(ColProteinID), fillIfEmpty(ColProteinName),
		quoteIdent(ColGeneName), isEmpty(d.acc))

	return d.execBatch(ctx, stmtSQL, len(found), func(i int) []any {
		u := found[i]
		return []any{u.Accession, u.ProteinID, u.ProteinName, u.GeneName}
	})
}
