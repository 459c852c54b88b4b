// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package accession generates row accessions of the form
// PREFIX-CODE-PMID-N for the merged dataset.
package accession

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultPrefix is the accession prefix when none is configured.
const DefaultPrefix = "SOORENA"

var sourceCodes = map[string]string{
	"UniProt":     "U",
	"Predicted":   "P",
	"Non-UniProt": "P",
	"OmniPath":    "O",
	"SIGNOR":      "S",
	"Signor":      "S",
	"TRRUST":      "T",
	"ORegAnno":    "R",
	"HTRIdb":      "H",
}

// SourceCode returns the one-letter code for a source label: the table
// entry when known, the label's first letter otherwise, and "X" for empty
// or "Unknown" labels.
func SourceCode(source string) string {
	source = strings.TrimSpace(source)
	if code, ok := sourceCodes[source]; ok {
		return code
	}
	if source == "" || source == "Unknown" {
		return "X"
	}
	return strings.ToUpper(string([]rune(source)[:1]))
}

// SanitizePMID maps empty and placeholder document IDs to "UNKNOWN".
func SanitizePMID(pmid string) string {
	pmid = strings.TrimSpace(pmid)
	switch strings.ToLower(pmid) {
	case "", "-", "nan", "none", "null":
		return "UNKNOWN"
	}
	return pmid
}

// Generator numbers rows per (document, source code). The counter key is
// the rendered prefix, so labels sharing a code ("SIGNOR", "Signor") can
// never produce the same accession.
type Generator struct {
	Prefix string
	counts map[string]int
}

// NewGenerator returns a generator using prefix, or DefaultPrefix when empty.
func NewGenerator(prefix string) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Generator{Prefix: prefix, counts: map[string]int{}}
}

// Next returns the accession for the next row with this pmid and source.
func (g *Generator) Next(pmid, source string) string {
	if g.counts == nil {
		g.counts = map[string]int{}
	}
	stem := fmt.Sprintf("%s-%s-%s", g.Prefix, SourceCode(source), SanitizePMID(pmid))
	g.counts[stem]++
	return fmt.Sprintf("%s-%d", stem, g.counts[stem])
}

// Row is the identity of one dataset row for Assign.
type Row struct {
	PMID   string
	Source string
}

// Assign returns one accession per row, in input order. Rows are numbered
// in (pmid, source, input position) order, so the result depends only on
// the multiset of rows and their relative order within equal keys.
func Assign(prefix string, rows []Row) []string {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rows[order[a]], rows[order[b]]
		if ra.PMID != rb.PMID {
			return ra.PMID < rb.PMID
		}
		return ra.Source < rb.Source
	})

	g := NewGenerator(prefix)
	out := make([]string, len(rows))
	for _, i := range order {
		out[i] = g.Next(rows[i].PMID, rows[i].Source)
	}
	return out
}
