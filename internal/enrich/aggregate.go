// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"sort"
	"strings"

	"github.com/pdiddy/pubenrich/internal/dataset"
	"github.com/pdiddy/pubenrich/internal/pubtator"
	"github.com/pdiddy/pubenrich/pkg/types"
)

// Field separators in aggregated values.
const (
	AccessionSep = ", "
	NameSep      = " | "
)

// Aggregate computes the dataset values for one document: the union of
// accessions reachable from its gene IDs and the canonical IDs, protein
// names and gene symbols of those accessions. Gene symbols from the
// protein database replace annotation gene names whenever there is at
// least one. Every value is sorted and joined so unchanged inputs give
// byte-identical output.
func Aggregate(g pubtator.Genes, mapping map[string][]string, details map[string]types.AccessionDetail) dataset.Update {
	accs := map[string]struct{}{}
	for _, id := range g.IDs {
		for _, a := range mapping[id] {
			if a = strings.TrimSpace(a); a != "" {
				accs[a] = struct{}{}
			}
		}
	}

	ids := map[string]struct{}{}
	proteins := map[string]struct{}{}
	symbols := map[string]struct{}{}
	for a := range accs {
		d := details[a]
		addNonEmpty(ids, d.CanonicalID)
		addNonEmpty(proteins, d.ProteinName)
		addNonEmpty(symbols, d.GeneSymbol)
	}

	geneNames := symbols
	if len(geneNames) == 0 {
		geneNames = map[string]struct{}{}
		for _, n := range g.Names {
			addNonEmpty(geneNames, n)
		}
	}

	return dataset.Update{
		PMID:        g.DocumentID,
		Accessions:  join(accs, AccessionSep),
		ProteinID:   join(ids, NameSep),
		ProteinName: join(proteins, NameSep),
		GeneName:    join(geneNames, NameSep),
	}
}

// accessionsFor returns the sorted accession union of every gene in genes.
func accessionsFor(genes []pubtator.Genes, mapping map[string][]string) []string {
	set := map[string]struct{}{}
	for _, g := range genes {
		for _, id := range g.IDs {
			for _, a := range mapping[id] {
				addNonEmpty(set, a)
			}
		}
	}
	return sorted(set)
}

func addNonEmpty(set map[string]struct{}, s string) {
	if s = strings.TrimSpace(s); s != "" {
		set[s] = struct{}{}
	}
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func join(set map[string]struct{}, sep string) string {
	return strings.Join(sorted(set), sep)
}
