// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"context"
	"fmt"
	"strings"
)

// NameRow is a row whose protein or gene name is still empty.
type NameRow struct {
	RowID     int64
	Accession string
}

// NameUpdate carries looked-up names for one row.
type NameUpdate struct {
	RowID       int64
	ProteinID   string
	ProteinName string
	GeneName    string
}

// EnsureNameColumns adds the columns the names pass writes.
func (d *DB) EnsureNameColumns(ctx context.Context) error {
	return d.EnsureColumns(ctx, d.acc, ColProteinID, ColProteinName, ColGeneName)
}

// RowsMissingNames lists rows with a usable accession and an empty protein
// or gene name, in rowid order. Accessions that are empty, "Unknown", or
// start with "NA" are not usable.
func (d *DB) RowsMissingNames(ctx context.Context) ([]NameRow, error) {
	a := quoteIdent(d.acc)
	q := fmt.Sprintf(`SELECT rowid, trim(%s) FROM %s
		WHERE NOT %s AND upper(trim(%s)) NOT LIKE 'NA%%' AND (%s OR %s)
		ORDER BY rowid`,
		a, quoteIdent(d.table), isEmpty(d.acc), a, isEmpty(ColProteinName), isEmpty(ColGeneName))

	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying rows missing names: %w", err)
	}
	defer rows.Close()

	var out []NameRow
	for rows.Next() {
		var r NameRow
		if err := rows.Scan(&r.RowID, &r.Accession); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FirstAccession returns the first entry of a comma-separated accession list.
func FirstAccession(s string) string {
	first, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(first)
}

// ApplyNames fills empty name fields by rowid and returns the rows touched.
func (d *DB) ApplyNames(ctx context.Context, updates []NameUpdate) (int64, error) {
	var nonEmpty []NameUpdate
	for _, u := range updates {
		if u.ProteinID != "" || u.ProteinName != "" || u.GeneName != "" {
			nonEmpty = append(nonEmpty, u)
		}
	}
	if len(nonEmpty) == 0 {
		return 0, nil
	}
	stmtSQL := fmt.Sprintf("UPDATE %s SET %s, %s, %s WHERE rowid = ?",
		quoteIdent(d.table), fillIfEmpty(ColProteinID), fillIfEmpty(ColProteinName), fillIfEmpty(ColGeneName))

	return d.execBatch(ctx, stmtSQL, len(nonEmpty), func(i int) []any {
		u := nonEmpty[i]
		return []any{u.ProteinID, u.ProteinName, u.GeneName, u.RowID}
	})
}
