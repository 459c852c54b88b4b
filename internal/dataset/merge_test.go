// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubenrich/pkg/types"
)

func TestReadPredictionsJSONL(t *testing.T) {
	in := strings.Join([]string{
		`{"pmid": "111", "source": "Predicted", "has_mechanism": "Yes", "mechanism_probability": 0.91}`,
		``,
		`{"pmid": 222, "source": "UniProt", "year": 2019}`,
		`   `,
		`{"source": "SIGNOR", "references": "SIGNOR:12345678"}`,
	}, "\n")

	got, err := ReadPredictionsJSONL(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "111", got[0].PMID)
	assert.InDelta(t, 0.91, got[0].MechanismProbability, 1e-9)
	assert.Equal(t, "222", got[1].PMID)
	assert.Equal(t, 2019, got[1].Year)
	assert.Equal(t, "", got[2].PMID)
	assert.Equal(t, "SIGNOR:12345678", got[2].References)
}

func TestReadPredictionsJSONL_BadLine(t *testing.T) {
	_, err := ReadPredictionsJSONL(strings.NewReader("{\"pmid\": \"1\"}\n{not json}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func mergeInput() []types.Prediction {
	return []types.Prediction{
		{PMID: "111", Source: "Non-UniProt", HasMechanism: "Yes", MechanismProbability: 0.9, MechanismType: "Autophosphorylation"},
		{PMID: "111", Source: "Non-UniProt", HasMechanism: "Yes", MechanismProbability: 0.9, MechanismType: "Autophosphorylation"},
		{PMID: "111", Source: "UniProt", HasMechanism: "Yes", MechanismType: "Autoinhibition", Accessions: "P12345"},
		{PMID: "222", Source: "Predicted", HasMechanism: "No"},
		{Source: "SIGNOR", Mechanism: "phosphorylation", Effect: "up-regulates", References: "SIGNOR:12345678;KEA:23456789"},
		{Source: "Signor", Mechanism: "binding"},
	}
}

type mergedRow struct {
	AC, PMID, Source, Type, Polarity string
}

func readMerged(t *testing.T, d *DB) []mergedRow {
	t.Helper()
	rows, err := d.db.Query(`SELECT AC, COALESCE(PMID, ''), Source, COALESCE(Autoregulatory_Type, ''), COALESCE(Polarity, '')
		FROM predictions ORDER BY AC`)
	require.NoError(t, err)
	defer rows.Close()

	var out []mergedRow
	for rows.Next() {
		var r mergedRow
		require.NoError(t, rows.Scan(&r.AC, &r.PMID, &r.Source, &r.Type, &r.Polarity))
		out = append(out, r)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestMerge(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	summary, err := d.Merge(ctx, mergeInput(), "")
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Read)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 6, summary.Rows)
	assert.Equal(t, 6, summary.Inserted)
	assert.Equal(t, 6, summary.Total)
	assert.Zero(t, summary.Replaced)

	got := readMerged(t, d)
	assert.Equal(t, []mergedRow{
		{"SOORENA-P-111-1", "111", "Predicted", "Autophosphorylation", "+"},
		{"SOORENA-P-222-1", "222", "Predicted", "", ""},
		{"SOORENA-S-12345678-1", "12345678", "SIGNOR", "Autophosphorylation", "+"},
		{"SOORENA-S-23456789-1", "23456789", "SIGNOR", "Autophosphorylation", "+"},
		{"SOORENA-S-UNKNOWN-1", "", "Signor", "Autoregulation", "±"},
		{"SOORENA-U-111-1", "111", "UniProt", "Autoinhibition", "–"},
	}, got)
}

func TestMerge_Idempotent(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	_, err := d.Merge(ctx, mergeInput(), "TEST")
	require.NoError(t, err)
	first := readMerged(t, d)

	summary, err := d.Merge(ctx, mergeInput(), "TEST")
	require.NoError(t, err)
	assert.Equal(t, int64(6), summary.Replaced)
	assert.Equal(t, 6, summary.Total)
	assert.Equal(t, first, readMerged(t, d))

	seen := map[string]bool{}
	for _, r := range first {
		assert.False(t, seen[r.AC], "duplicate accession %s", r.AC)
		seen[r.AC] = true
		assert.True(t, strings.HasPrefix(r.AC, "TEST-"))
	}
}

func TestMerge_ReplacesPairOnly(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	_, err := d.Merge(ctx, []types.Prediction{
		{PMID: "111", Source: "Predicted", MechanismType: "Autolysis"},
		{PMID: "111", Source: "UniProt", MechanismType: "Autoinhibition"},
	}, "")
	require.NoError(t, err)

	summary, err := d.Merge(ctx, []types.Prediction{
		{PMID: "111", Source: "Predicted", MechanismType: "Autocatalytic"},
		{PMID: "111", Source: "Predicted", MechanismType: "Autoacetylation"},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Replaced)
	assert.Equal(t, 3, summary.Total)

	got := readMerged(t, d)
	require.Len(t, got, 3)
	assert.Equal(t, "SOORENA-P-111-1", got[0].AC)
	assert.Equal(t, "Autocatalytic", got[0].Type)
	assert.Equal(t, "SOORENA-P-111-2", got[1].AC)
	assert.Equal(t, "Autoacetylation", got[1].Type)
	assert.Equal(t, "SOORENA-U-111-1", got[2].AC)
}

func TestMerge_RejectsAccessionColumnClash(t *testing.T) {
	d, err := Open(types.DatasetConfig{Path: t.TempDir() + "/p.db", AccessionColumn: "ac"})
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Merge(context.Background(), nil, "")
	assert.Error(t, err)
}
