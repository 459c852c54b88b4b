// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdiddy/pubenrich/internal/accession"
	"github.com/pdiddy/pubenrich/internal/curated"
	"github.com/pdiddy/pubenrich/pkg/types"
)

// MaxJSONLLineCapacity bounds one input line (1MB).
const MaxJSONLLineCapacity = 1024 * 1024

// predictionLine accepts the document ID as a JSON string or number.
type predictionLine struct {
	types.Prediction
	PMID json.RawMessage `json:"pmid"`
}

// ReadPredictionsJSONL reads one Prediction per non-empty line.
func ReadPredictionsJSONL(r io.Reader) ([]types.Prediction, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	var out []types.Prediction
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var pl predictionLine
		if err := json.Unmarshal(line, &pl); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		p := pl.Prediction
		p.PMID = rawID(pl.PMID)
		out = append(out, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading predictions: %w", err)
	}
	return out, nil
}

// ReadPredictionsFile opens path and reads it with ReadPredictionsJSONL.
func ReadPredictionsFile(path string) ([]types.Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening predictions file: %w", err)
	}
	defer f.Close()
	return ReadPredictionsJSONL(f)
}

func rawID(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// MergeSummary holds counts from one Merge.
type MergeSummary struct {
	Read       int
	Rows       int
	Duplicates int
	Replaced   int64
	Inserted   int
	Total      int
}

// Merge normalizes incoming rows, drops exact duplicates, replaces existing
// rows sharing a (PMID, Source) pair with the incoming ones, and reassigns
// row accessions across the whole table. Everything happens in one
// transaction; merging the same input twice leaves identical content.
func (d *DB) Merge(ctx context.Context, in []types.Prediction, prefix string) (MergeSummary, error) {
	summary := MergeSummary{Read: len(in)}
	if strings.EqualFold(d.acc, ColRowAccession) {
		return summary, fmt.Errorf("accession column %q collides with the row accession column", d.acc)
	}
	if err := d.EnsureSchema(ctx); err != nil {
		return summary, err
	}

	var rows []types.Prediction
	seen := map[types.Prediction]bool{}
	for _, p := range in {
		for _, r := range curated.Expand(p) {
			if seen[r] {
				summary.Duplicates++
				continue
			}
			seen[r] = true
			rows = append(rows, r)
		}
	}
	summary.Rows = len(rows)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning merge: %w", err)
	}
	defer tx.Rollback()

	type pair struct{ pmid, source string }
	replaced := map[pair]bool{}
	del := fmt.Sprintf("DELETE FROM %s WHERE trim(%s) = ? AND %s = ?", quoteIdent(d.table), quoteIdent(d.pmid), ColSource)
	for _, r := range rows {
		k := pair{r.PMID, r.Source}
		if replaced[k] {
			continue
		}
		replaced[k] = true
		res, err := tx.ExecContext(ctx, del, r.PMID, r.Source)
		if err != nil {
			return summary, fmt.Errorf("replacing %s/%s: %w", r.PMID, r.Source, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			summary.Replaced += n
		}
	}

	if err := d.insertPredictions(ctx, tx, rows); err != nil {
		return summary, err
	}
	summary.Inserted = len(rows)

	total, err := d.assignAccessions(ctx, tx, prefix)
	if err != nil {
		return summary, err
	}
	summary.Total = total

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing merge: %w", err)
	}
	return summary, nil
}

func (d *DB) insertPredictions(ctx context.Context, tx *sql.Tx, rows []types.Prediction) error {
	cols := []string{
		quoteIdent(d.pmid), ColSource, ColHasMechanism, ColMechanismProb, ColMechanismType, ColPolarity,
		ColTypeConfidence, ColTitle, ColAbstract, ColJournal, ColAuthors, ColYear, ColMonth,
		quoteIdent(d.acc), ColOrganism, ColProteinID, ColProteinName, ColGeneName,
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(d.table),
		strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range rows {
		var year any
		if p.Year > 0 {
			year = p.Year
		}
		if _, err := stmt.ExecContext(ctx,
			p.PMID, p.Source, p.HasMechanism, p.MechanismProbability, p.MechanismType, p.Polarity,
			p.TypeConfidence, p.Title, p.Abstract, p.Journal, p.Authors, year, p.Month,
			p.Accessions, p.Organism, p.ProteinID, p.ProteinName, p.GeneName,
		); err != nil {
			return fmt.Errorf("inserting %s/%s: %w", p.PMID, p.Source, err)
		}
	}
	return nil
}

// AssignAccessions rewrites the row accession of every row and returns the
// number of rows. Rows are numbered in (PMID, Source, rowid) order.
func (d *DB) AssignAccessions(ctx context.Context, prefix string) (int, error) {
	if err := d.EnsureColumns(ctx, ColRowAccession, ColSource); err != nil {
		return 0, err
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning accession update: %w", err)
	}
	defer tx.Rollback()

	n, err := d.assignAccessions(ctx, tx, prefix)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (d *DB) assignAccessions(ctx context.Context, tx *sql.Tx, prefix string) (int, error) {
	q := fmt.Sprintf("SELECT rowid, COALESCE(trim(%s), ''), COALESCE(trim(%s), '') FROM %s ORDER BY rowid",
		quoteIdent(d.pmid), ColSource, quoteIdent(d.table))
	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("reading row identities: %w", err)
	}

	var ids []int64
	var keys []accession.Row
	for rows.Next() {
		var id int64
		var k accession.Row
		if err := rows.Scan(&id, &k.PMID, &k.Source); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning row identity: %w", err)
		}
		ids = append(ids, id)
		keys = append(keys, k)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return 0, fmt.Errorf("reading row identities: %w", err)
	}

	acs := accession.Assign(prefix, keys)

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("UPDATE %s SET %s = ? WHERE rowid = ?", quoteIdent(d.table), ColRowAccession))
	if err != nil {
		return 0, fmt.Errorf("preparing accession update: %w", err)
	}
	defer stmt.Close()
	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, acs[i], id); err != nil {
			return 0, fmt.Errorf("updating accession of row %d: %w", id, err)
		}
	}
	return len(ids), nil
}
