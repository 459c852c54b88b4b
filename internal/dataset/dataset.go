// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset reads and writes the SQLite predictions table. Every
// enrichment write fills a field only while it is still empty, so passes
// can be re-run without clobbering curated values.
package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pubenrich/pkg/types"
)

// Column names shared by every pass.
const (
	ColRowAccession    = "AC"
	ColSource          = "Source"
	ColHasMechanism    = "Has_Mechanism"
	ColMechanismProb   = "Mechanism_Probability"
	ColMechanismType   = "Autoregulatory_Type"
	ColPolarity        = "Polarity"
	ColTypeConfidence  = "Type_Confidence"
	ColTitle           = "Title"
	ColAbstract        = "Abstract"
	ColJournal         = "Journal"
	ColAuthors         = "Authors"
	ColYear            = "Year"
	ColMonth           = "Month"
	ColPublicationDate = "PublicationDate"
	ColOrganism        = "OS"
	ColProteinID       = "Protein_ID"
	ColProteinName     = "Protein_Name"
	ColGeneName        = "Gene_Name"
)

// Placeholder is the sentinel some sources write for a missing value.
const Placeholder = "Unknown"

const (
	defaultTable           = "predictions"
	defaultPMIDColumn      = "PMID"
	defaultAccessionColumn = "UniProtKB_accessions"
)

// DB is a handle on one predictions table.
type DB struct {
	db *sql.DB

	table string
	pmid  string
	acc   string
}

// Open opens the dataset file. Empty table and column names take their
// defaults.
func Open(cfg types.DatasetConfig) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("dataset path is required")
	}
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening dataset %s: %w", cfg.Path, err)
	}

	return &DB{
		db:    db,
		table: orDefault(cfg.Table, defaultTable),
		pmid:  orDefault(cfg.PMIDColumn, defaultPMIDColumn),
		acc:   orDefault(cfg.AccessionColumn, defaultAccessionColumn),
	}, nil
}

// Close releases the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Table returns the predictions table name.
func (d *DB) Table() string { return d.table }

// columnDef is one standard column and its declared type.
type columnDef struct {
	name string
	typ  string
}

func (d *DB) standardColumns() []columnDef {
	return []columnDef{
		{d.pmid, "TEXT"},
		{ColRowAccession, "TEXT"},
		{ColHasMechanism, "TEXT"},
		{ColMechanismProb, "REAL"},
		{ColSource, "TEXT"},
		{ColMechanismType, "TEXT"},
		{ColPolarity, "TEXT"},
		{ColTypeConfidence, "REAL"},
		{ColTitle, "TEXT"},
		{ColAbstract, "TEXT"},
		{ColJournal, "TEXT"},
		{ColAuthors, "TEXT"},
		{ColYear, "INTEGER"},
		{ColMonth, "TEXT"},
		{ColPublicationDate, "TEXT"},
		{d.acc, "TEXT"},
		{ColOrganism, "TEXT"},
		{ColProteinID, "TEXT"},
		{ColProteinName, "TEXT"},
		{ColGeneName, "TEXT"},
	}
}

// EnsureSchema creates the predictions table when it does not exist and
// adds any missing standard columns to an existing one.
func (d *DB) EnsureSchema(ctx context.Context) error {
	var decls, names []string
	seen := map[string]bool{}
	for _, c := range d.standardColumns() {
		if seen[strings.ToLower(c.name)] {
			continue
		}
		seen[strings.ToLower(c.name)] = true
		decls = append(decls, quoteIdent(c.name)+" "+c.typ)
		names = append(names, c.name)
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quoteIdent(d.table), strings.Join(decls, ",\n\t"))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating table %s: %w", d.table, err)
	}
	if err := d.EnsureColumns(ctx, names...); err != nil {
		return err
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(%s)`,
			quoteIdent("idx_"+d.table+"_pmid"), quoteIdent(d.table), quoteIdent(d.pmid)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(%s)`,
			quoteIdent("idx_"+d.table+"_ac"), quoteIdent(d.table), ColRowAccession),
	}
	for _, idx := range indexes {
		if _, err := d.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

// EnsureColumns adds any of cols missing from the table. Columns are TEXT
// except Year and the score columns. The table must exist.
func (d *DB) EnsureColumns(ctx context.Context, cols ...string) error {
	existing, err := d.columns(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return fmt.Errorf("table %s does not exist", d.table)
	}
	for _, c := range cols {
		if existing[strings.ToLower(c)] {
			continue
		}
		typ := "TEXT"
		switch c {
		case ColYear:
			typ = "INTEGER"
		case ColMechanismProb, ColTypeConfidence:
			typ = "REAL"
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(d.table), quoteIdent(c), typ)
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adding column %s: %w", c, err)
		}
		existing[strings.ToLower(c)] = true
	}
	return nil
}

func (d *DB) columns(ctx context.Context) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(d.table)))
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", d.table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notnull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column info: %w", err)
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}

// isEmpty renders the "still empty" predicate for col.
func isEmpty(col string) string {
	q := quoteIdent(col)
	if col == ColYear {
		return fmt.Sprintf("(%s IS NULL OR trim(%s) = '' OR %s = 0)", q, q, q)
	}
	return fmt.Sprintf("(%s IS NULL OR trim(%s) = '' OR %s = '%s')", q, q, q, Placeholder)
}

// fillIfEmpty renders an assignment that writes the bound value to col
// only when col is empty and the value is not.
func fillIfEmpty(col string) string {
	q := quoteIdent(col)
	return fmt.Sprintf("%s = CASE WHEN %s THEN COALESCE(NULLIF(?, ''), %s) ELSE %s END", q, isEmpty(col), q, q)
}

// quoteIdent double-quotes a table or column name.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
