// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Update carries the values computed for one document. Empty fields are
// never written.
type Update struct {
	PMID        string
	Accessions  string
	ProteinID   string
	ProteinName string
	GeneName    string
}

// IsEmpty reports whether u would write nothing.
func (u Update) IsEmpty() bool {
	return u.Accessions == "" && u.ProteinID == "" && u.ProteinName == "" && u.GeneName == ""
}

func (d *DB) unresolvedWhere() string {
	p := quoteIdent(d.pmid)
	return fmt.Sprintf("%s AND %s IS NOT NULL AND trim(%s) != ''", isEmpty(d.acc), p, p)
}

// EnsureEnrichColumns adds the columns the enrichment pass writes.
func (d *DB) EnsureEnrichColumns(ctx context.Context) error {
	return d.EnsureColumns(ctx, d.acc, ColProteinID, ColProteinName, ColGeneName)
}

// CountUnresolved counts distinct document IDs with an empty accession field.
func (d *DB) CountUnresolved(ctx context.Context) (int, error) {
	var n int
	q := fmt.Sprintf("SELECT COUNT(DISTINCT trim(%s)) FROM %s WHERE %s",
		quoteIdent(d.pmid), quoteIdent(d.table), d.unresolvedWhere())
	if err := d.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting unresolved rows: %w", err)
	}
	return n, nil
}

// NextUnresolved returns up to limit distinct unresolved document IDs
// ordered after the given ID ("" starts from the beginning). Paging by key
// keeps no cursor open while updates run.
func (d *DB) NextUnresolved(ctx context.Context, after string, limit int) ([]string, error) {
	p := quoteIdent(d.pmid)
	q := fmt.Sprintf(`SELECT DISTINCT trim(%s) AS doc_id FROM %s
		WHERE %s AND trim(%s) > ?
		ORDER BY doc_id LIMIT ?`, p, quoteIdent(d.table), d.unresolvedWhere(), p)
	return d.queryStrings(ctx, q, after, limit)
}

// ApplyUpdates writes updates in one transaction and returns the number of
// rows touched. Only rows whose accession field is still empty are
// considered, and within them each field is filled only if empty.
func (d *DB) ApplyUpdates(ctx context.Context, updates []Update) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	stmtSQL := fmt.Sprintf("UPDATE %s SET %s, %s, %s, %s WHERE trim(%s) = ? AND %s",
		quoteIdent(d.table),
		fillIfEmpty(d.acc), fillIfEmpty(ColProteinID), fillIfEmpty(ColProteinName), fillIfEmpty(ColGeneName),
		quoteIdent(d.pmid), isEmpty(d.acc))

	return d.execBatch(ctx, stmtSQL, len(updates), func(i int) []any {
		u := updates[i]
		return []any{u.Accessions, u.ProteinID, u.ProteinName, u.GeneName, u.PMID}
	})
}

// GeneMapRow is one document's raw annotation genes.
type GeneMapRow struct {
	PMID      string
	GeneIDs   []string
	GeneNames []string
}

// EnsureGeneMapTable creates the side table holding raw annotation genes.
func (d *DB) EnsureGeneMapTable(ctx context.Context, table string) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		PMID TEXT PRIMARY KEY,
		Gene_IDs TEXT,
		Gene_Names TEXT,
		Updated_At TEXT
	)`, quoteIdent(table))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating gene map table %s: %w", table, err)
	}
	return nil
}

// UpsertGeneMap replaces the side-table rows for the given documents.
func (d *DB) UpsertGeneMap(ctx context.Context, table string, rows []GeneMapRow, now time.Time) error {
	if len(rows) == 0 {
		return nil
	}
	stmtSQL := fmt.Sprintf(`INSERT INTO %s (PMID, Gene_IDs, Gene_Names, Updated_At) VALUES (?, ?, ?, ?)
		ON CONFLICT(PMID) DO UPDATE SET
			Gene_IDs = excluded.Gene_IDs,
			Gene_Names = excluded.Gene_Names,
			Updated_At = excluded.Updated_At`, quoteIdent(table))
	stamp := now.UTC().Format(time.RFC3339)

	_, err := d.execBatch(ctx, stmtSQL, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.PMID, strings.Join(r.GeneIDs, ";"), strings.Join(r.GeneNames, ";"), stamp}
	})
	return err
}

// execBatch runs stmtSQL once per argument set in a single transaction and
// sums the affected rows.
func (d *DB) execBatch(ctx context.Context, stmtSQL string, n int, args func(i int) []any) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	var total int64
	for i := 0; i < n; i++ {
		res, err := stmt.ExecContext(ctx, args(i)...)
		if err != nil {
			return 0, fmt.Errorf("executing statement: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			total += affected
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return total, nil
}

func (d *DB) queryStrings(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", d.table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", d.table, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
