// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package accession

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceCode(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"UniProt", "U"},
		{"Predicted", "P"},
		{"Non-UniProt", "P"},
		{"OmniPath", "O"},
		{"SIGNOR", "S"},
		{"Signor", "S"},
		{"TRRUST", "T"},
		{"ORegAnno", "R"},
		{"HTRIdb", "H"},
		{"kegg", "K"},
		{"", "X"},
		{"Unknown", "X"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, SourceCode(tt.source))
		})
	}
}

func TestSanitizePMID(t *testing.T) {
	for _, in := range []string{"", " ", "-", "nan", "None"} {
		assert.Equal(t, "UNKNOWN", SanitizePMID(in), "input %q", in)
	}
	assert.Equal(t, "12345", SanitizePMID(" 12345 "))
}

func TestGenerator_Next(t *testing.T) {
	g := NewGenerator("")
	assert.Equal(t, "SOORENA-U-111-1", g.Next("111", "UniProt"))
	assert.Equal(t, "SOORENA-U-111-2", g.Next("111", "UniProt"))
	assert.Equal(t, "SOORENA-P-111-1", g.Next("111", "Predicted"))
	assert.Equal(t, "SOORENA-S-111-1", g.Next("111", "SIGNOR"))
	assert.Equal(t, "SOORENA-S-111-2", g.Next("111", "Signor"), "labels sharing a code share a counter")
	assert.Equal(t, "SOORENA-X-UNKNOWN-1", g.Next("nan", ""))
}

func TestAssign_UniqueAndStable(t *testing.T) {
	var rows []Row
	sources := []string{"UniProt", "Predicted", "SIGNOR", "Signor", "Unknown", "", "Xeno"}
	for i := 0; i < 200; i++ {
		rows = append(rows, Row{PMID: fmt.Sprint(i % 7), Source: sources[i%len(sources)]})
	}
	rows = append(rows, Row{PMID: "-", Source: "UniProt"}, Row{PMID: "", Source: "UniProt"})

	first := Assign("SOORENA", rows)
	second := Assign("SOORENA", rows)
	assert.Equal(t, first, second)

	seen := map[string]bool{}
	for _, ac := range first {
		assert.False(t, seen[ac], "duplicate accession %s", ac)
		seen[ac] = true
	}
}

func TestAssign_OrdersWithinKeyByPosition(t *testing.T) {
	rows := []Row{
		{PMID: "2", Source: "UniProt"},
		{PMID: "1", Source: "UniProt"},
		{PMID: "1", Source: "UniProt"},
	}
	assert.Equal(t, []string{"AC-U-2-1", "AC-U-1-1", "AC-U-1-2"}, Assign("AC", rows))
}
