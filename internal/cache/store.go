// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists the results of external lookups so repeat runs
// skip the network. Store keeps four namespaces in SQLite: gene ID to
// accessions, accession to detail, document ID to bibliographic metadata,
// and gene symbol to the accession found by a gene-name search. Memory is the in-process cache used by parallel workers.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubenrich/pkg/types"
)

// maxVars stays under SQLite's default host-parameter limit.
const maxVars = 500

// Namespace names one cache table.
type Namespace string

const (
	Genes   Namespace = "genes"
	Details Namespace = "details"
	Biblio  Namespace = "biblio"
	Symbols Namespace = "symbols"
)

// Namespaces lists every namespace in display order.
var Namespaces = []Namespace{Genes, Details, Biblio, Symbols}

var tables = map[Namespace]string{
	Genes:   "gene_to_uniprot",
	Details: "uniprot_details",
	Biblio:  "pubmed_metadata",
	Symbols: "gene_name_to_uniprot",
}

// ParseNamespace accepts a namespace or its table name.
func ParseNamespace(s string) (Namespace, error) {
	for ns, table := range tables {
		if s == string(ns) || s == table {
			return ns, nil
		}
	}
	return "", fmt.Errorf("unknown cache namespace %q (want genes, details, biblio, or symbols)", s)
}

// Store is the SQLite-backed lookup cache. Methods are safe for concurrent
// use; a mutex serializes them.
type Store struct {
	mu sync.Mutex
	db *sql.DB

	// OnLookup, when set, observes hit and miss counts of every read.
	OnLookup func(ns Namespace, hits, misses int)
}

// Open opens or creates the cache database at path and its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS gene_to_uniprot (
			gene_id TEXT PRIMARY KEY,
			accessions TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS uniprot_details (
			accession TEXT PRIMARY KEY,
			uniprot_id TEXT,
			protein_name TEXT,
			gene_name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS pubmed_metadata (
			pmid TEXT PRIMARY KEY,
			publication_date TEXT,
			year INTEGER,
			month TEXT,
			journal TEXT,
			authors TEXT,
			fetched_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS gene_name_to_uniprot (
			gene_name TEXT PRIMARY KEY,
			accession TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// GeneMappings returns cached accessions for the given gene IDs. IDs not in
// the cache are absent from the result; a cached empty slice means the ID
// is known to have no mapping.
func (s *Store) GeneMappings(ctx context.Context, ids []string) (map[string][]string, error) {
	out := make(map[string][]string)
	err := s.lookup(ctx, Genes, `SELECT gene_id, accessions FROM gene_to_uniprot WHERE gene_id IN (%s)`, ids,
		func(rows *sql.Rows) error {
			var id string
			var accs sql.NullString
			if err := rows.Scan(&id, &accs); err != nil {
				return err
			}
			out[id] = splitAccessions(accs.String)
			return nil
		}, func() int { return len(out) })
	return out, err
}

// PutGeneMappings upserts mappings in one transaction.
func (s *Store) PutGeneMappings(ctx context.Context, m map[string][]string) error {
	return s.upsert(ctx, `INSERT INTO gene_to_uniprot (gene_id, accessions) VALUES (?, ?)
		ON CONFLICT(gene_id) DO UPDATE SET accessions = excluded.accessions`,
		len(m), func(stmt *sql.Stmt) error {
			for _, id := range sortedKeys(m) {
				if _, err := stmt.ExecContext(ctx, id, joinAccessions(m[id])); err != nil {
					return fmt.Errorf("gene %s: %w", id, err)
				}
			}
			return nil
		})
}

// Details returns cached accession details. Accessions not in the cache are
// absent from the result.
func (s *Store) Details(ctx context.Context, accessions []string) (map[string]types.AccessionDetail, error) {
	out := make(map[string]types.AccessionDetail)
	err := s.lookup(ctx, Details, `SELECT accession, uniprot_id, protein_name, gene_name FROM uniprot_details WHERE accession IN (%s)`, accessions,
		func(rows *sql.Rows) error {
			var acc string
			var id, name, gene sql.NullString
			if err := rows.Scan(&acc, &id, &name, &gene); err != nil {
				return err
			}
			out[acc] = types.AccessionDetail{CanonicalID: id.String, ProteinName: name.String, GeneSymbol: gene.String}
			return nil
		}, func() int { return len(out) })
	return out, err
}

// PutDetails upserts accession details in one transaction.
func (s *Store) PutDetails(ctx context.Context, m map[string]types.AccessionDetail) error {
	return s.upsert(ctx, `INSERT INTO uniprot_details (accession, uniprot_id, protein_name, gene_name) VALUES (?, ?, ?, ?)
		ON CONFLICT(accession) DO UPDATE SET
			uniprot_id = excluded.uniprot_id,
			protein_name = excluded.protein_name,
			gene_name = excluded.gene_name`,
		len(m), func(stmt *sql.Stmt) error {
			for _, acc := range sortedKeys(m) {
				d := m[acc]
				if _, err := stmt.ExecContext(ctx, acc, d.CanonicalID, d.ProteinName, d.GeneSymbol); err != nil {
					return fmt.Errorf("accession %s: %w", acc, err)
				}
			}
			return nil
		})
}

// Biblio returns cached bibliographic metadata. Document IDs not in the
// cache are absent from the result.
func (s *Store) Biblio(ctx context.Context, pmids []string) (map[string]types.BiblioMetadata, error) {
	out := make(map[string]types.BiblioMetadata)
	err := s.lookup(ctx, Biblio, `SELECT pmid, publication_date, year, month, journal, authors, fetched_at FROM pubmed_metadata WHERE pmid IN (%s)`, pmids,
		func(rows *sql.Rows) error {
			var pmid string
			var date, month, journal, authors, fetched sql.NullString
			var year sql.NullInt64
			if err := rows.Scan(&pmid, &date, &year, &month, &journal, &authors, &fetched); err != nil {
				return err
			}
			md := types.BiblioMetadata{
				PublicationDate: date.String,
				Year:            int(year.Int64),
				Month:           month.String,
				Journal:         journal.String,
				Authors:         authors.String,
			}
			if t, err := time.Parse(time.RFC3339, fetched.String); err == nil {
				md.FetchedAt = t
			}
			out[pmid] = md
			return nil
		}, func() int { return len(out) })
	return out, err
}

// PutBiblio upserts bibliographic metadata in one transaction. A zero
// FetchedAt is stored as the current time.
func (s *Store) PutBiblio(ctx context.Context, m map[string]types.BiblioMetadata) error {
	now := time.Now().UTC().Truncate(time.Second)
	return s.upsert(ctx, `INSERT INTO pubmed_metadata (pmid, publication_date, year, month, journal, authors, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pmid) DO UPDATE SET
			publication_date = excluded.publication_date,
			year = excluded.year,
			month = excluded.month,
			journal = excluded.journal,
			authors = excluded.authors,
			fetched_at = excluded.fetched_at`,
		len(m), func(stmt *sql.Stmt) error {
			for _, pmid := range sortedKeys(m) {
				md := m[pmid]
				var year any
				if md.Year > 0 {
					year = md.Year
				}
				fetched := md.FetchedAt
				if fetched.IsZero() {
					fetched = now
				}
				if _, err := stmt.ExecContext(ctx, pmid, md.PublicationDate, year, md.Month,
					md.Journal, md.Authors, fetched.UTC().Format(time.RFC3339)); err != nil {
					return fmt.Errorf("pmid %s: %w", pmid, err)
				}
			}
			return nil
		})
}

// SymbolHits returns the cached gene-name search result per gene symbol.
// Symbols not in the cache are absent; a cached "" means the search found
// no entry.
func (s *Store) SymbolHits(ctx context.Context, symbols []string) (map[string]string, error) {
	out := make(map[string]string)
	err := s.lookup(ctx, Symbols, `SELECT gene_name, accession FROM gene_name_to_uniprot WHERE gene_name IN (%s)`, symbols,
		func(rows *sql.Rows) error {
			var sym string
			var acc sql.NullString
			if err := rows.Scan(&sym, &acc); err != nil {
				return err
			}
			out[sym] = acc.String
			return nil
		}, func() int { return len(out) })
	return out, err
}

// PutSymbolHits upserts gene-name search results in one transaction.
func (s *Store) PutSymbolHits(ctx context.Context, m map[string]string) error {
	return s.upsert(ctx, `INSERT INTO gene_name_to_uniprot (gene_name, accession) VALUES (?, ?)
		ON CONFLICT(gene_name) DO UPDATE SET accession = excluded.accession`,
		len(m), func(stmt *sql.Stmt) error {
			for _, sym := range sortedKeys(m) {
				if _, err := stmt.ExecContext(ctx, sym, m[sym]); err != nil {
					return fmt.Errorf("gene name %s: %w", sym, err)
				}
			}
			return nil
		})
}

// Stats holds row counts per namespace.
type Stats map[Namespace]int

// Stats counts the rows of every namespace.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := make(Stats, len(tables))
	for _, ns := range Namespaces {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+tables[ns]).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", ns, err)
		}
		st[ns] = n
	}
	return st, nil
}

// Clear deletes every entry in ns and returns the number removed.
func (s *Store) Clear(ctx context.Context, ns Namespace) (int64, error) {
	table, ok := tables[ns]
	if !ok {
		return 0, fmt.Errorf("unknown cache namespace %q", ns)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		return 0, fmt.Errorf("clearing %s: %w", ns, err)
	}
	return res.RowsAffected()
}

// Dump is the full cache content as written by Export.
type Dump struct {
	Genes   map[string][]string              `yaml:"gene_to_uniprot"`
	Details map[string]types.AccessionDetail `yaml:"uniprot_details"`
	Biblio  map[string]types.BiblioMetadata  `yaml:"pubmed_metadata"`
	Symbols map[string]string                `yaml:"gene_name_to_uniprot"`
}

// Export writes every namespace to w as YAML.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	var d Dump
	var err error

	if d.Genes, err = s.GeneMappings(ctx, s.keys(ctx, Genes, "gene_id")); err != nil {
		return err
	}
	if d.Details, err = s.Details(ctx, s.keys(ctx, Details, "accession")); err != nil {
		return err
	}
	if d.Biblio, err = s.Biblio(ctx, s.keys(ctx, Biblio, "pmid")); err != nil {
		return err
	}
	if d.Symbols, err = s.SymbolHits(ctx, s.keys(ctx, Symbols, "gene_name")); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&d); err != nil {
		return fmt.Errorf("encoding cache export: %w", err)
	}
	return enc.Close()
}

// keys lists every key in ns. Errors yield an empty list; the following
// typed read reports them.
func (s *Store) keys(ctx context.Context, ns Namespace, col string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+col+" FROM "+tables[ns]+" ORDER BY "+col)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if rows.Scan(&k) == nil {
			keys = append(keys, k)
		}
	}
	return keys
}

// lookup runs query in chunks of maxVars keys, handing each row to scan.
// query must contain one %s for the placeholder list.
func (s *Store) lookup(ctx context.Context, ns Namespace, query string, keys []string,
	scan func(*sql.Rows) error, found func() int) error {
	keys = cleanKeys(keys)
	if len(keys) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < len(keys); i += maxVars {
		chunk := keys[i:min(i+maxVars, len(keys))]
		args := make([]any, len(chunk))
		for j, k := range chunk {
			args[j] = k
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(query, placeholders), args...)
		if err != nil {
			return fmt.Errorf("reading %s cache: %w", ns, err)
		}
		for rows.Next() {
			if err := scan(rows); err != nil {
				rows.Close()
				return fmt.Errorf("scanning %s cache: %w", ns, err)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("reading %s cache: %w", ns, err)
		}
	}

	if s.OnLookup != nil {
		hits := found()
		s.OnLookup(ns, hits, len(keys)-hits)
	}
	return nil
}

// upsert prepares stmt inside a transaction, runs fill, and commits.
func (s *Store) upsert(ctx context.Context, stmtSQL string, n int, fill func(*sql.Stmt) error) error {
	if n == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning cache write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return fmt.Errorf("preparing cache write: %w", err)
	}
	defer stmt.Close()

	if err := fill(stmt); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return tx.Commit()
}

func cleanKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func splitAccessions(s string) []string {
	out := []string{}
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func joinAccessions(accs []string) string {
	sorted := append([]string(nil), accs...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
