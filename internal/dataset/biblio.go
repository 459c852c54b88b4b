// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// BiblioUpdate carries bibliographic values for one document. Empty fields
// and a zero Year are never written.
type BiblioUpdate struct {
	PMID            string
	PublicationDate string
	Year            int
	Month           string
	Journal         string
	Authors         string
	Title           string
	Abstract        string
}

// IsEmpty reports whether u would write nothing.
func (u BiblioUpdate) IsEmpty() bool {
	return u.PublicationDate == "" && u.Year == 0 && u.Month == "" && u.Journal == "" &&
		u.Authors == "" && u.Title == "" && u.Abstract == ""
}

func biblioColumns(withText bool) []string {
	cols := []string{ColJournal, ColAuthors, ColYear, ColMonth, ColPublicationDate}
	if withText {
		cols = append(cols, ColTitle, ColAbstract)
	}
	return cols
}

func (d *DB) biblioWhere(withText bool) string {
	p := quoteIdent(d.pmid)
	return fmt.Sprintf("(%s) AND %s IS NOT NULL AND trim(%s) != ''", d.anyEmpty(biblioColumns(withText)), p, p)
}

// EnsureBiblioColumns adds the columns the bibliographic pass writes.
func (d *DB) EnsureBiblioColumns(ctx context.Context, withText bool) error {
	return d.EnsureColumns(ctx, biblioColumns(withText)...)
}

// CountPendingBiblio counts distinct document IDs with at least one empty
// bibliographic field.
func (d *DB) CountPendingBiblio(ctx context.Context, withText bool) (int, error) {
	var n int
	q := fmt.Sprintf("SELECT COUNT(DISTINCT trim(%s)) FROM %s WHERE %s",
		quoteIdent(d.pmid), quoteIdent(d.table), d.biblioWhere(withText))
	if err := d.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows missing metadata: %w", err)
	}
	return n, nil
}

// NextPendingBiblio pages distinct document IDs missing bibliographic
// fields, ordered after the given ID.
func (d *DB) NextPendingBiblio(ctx context.Context, after string, limit int, withText bool) ([]string, error) {
	p := quoteIdent(d.pmid)
	q := fmt.Sprintf(`SELECT DISTINCT trim(%s) AS doc_id FROM %s
		WHERE %s AND trim(%s) > ?
		ORDER BY doc_id LIMIT ?`, p, quoteIdent(d.table), d.biblioWhere(withText), p)
	return d.queryStrings(ctx, q, after, limit)
}

// ApplyBiblio fills empty bibliographic fields for every row of each
// document and returns the number of rows touched.
func (d *DB) ApplyBiblio(ctx context.Context, updates []BiblioUpdate, withText bool) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	cols := biblioColumns(withText)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fillIfEmpty(c)
	}
	stmtSQL := fmt.Sprintf("UPDATE %s SET %s WHERE trim(%s) = ? AND (%s)",
		quoteIdent(d.table), strings.Join(sets, ", "), quoteIdent(d.pmid), d.anyEmpty(cols))

	return d.execBatch(ctx, stmtSQL, len(updates), func(i int) []any {
		u := updates[i]
		year := ""
		if u.Year > 0 {
			year = strconv.Itoa(u.Year)
		}
		args := []any{u.Journal, u.Authors, year, u.Month, u.PublicationDate}
		if withText {
			args = append(args, u.Title, u.Abstract)
		}
		return append(args, u.PMID)
	})
}

func (d *DB) anyEmpty(cols []string) string {
	preds := make([]string, len(cols))
	for i, c := range cols {
		preds[i] = isEmpty(c)
	}
	return strings.Join(preds, " OR ")
}
