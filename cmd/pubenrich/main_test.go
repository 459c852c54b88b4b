// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pubenrich dev\n", out)
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "predictions.jsonl")
	dbPath := filepath.Join(dir, "dataset.sqlite")
	metricsPath := filepath.Join(dir, "pubenrich.prom")
	require.NoError(t, os.WriteFile(input, []byte(
		`{"pmid": "111", "source": "Predicted", "has_mechanism": "Yes", "mechanism_type": "Autolysis"}`+"\n"+
			`{"pmid": "222", "source": "UniProt", "has_mechanism": "Yes", "mechanism_type": "Autoinhibition"}`+"\n",
	), 0o644))

	out, err := execute(t, "merge", "--db", dbPath, "--input", input, "--metrics-file", metricsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Read 2 predictions")
	assert.Contains(t, out, "Table now has 2 rows.")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var acs []string
	rows, err := db.Query(`SELECT AC FROM predictions ORDER BY AC`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var ac string
		require.NoError(t, rows.Scan(&ac))
		acs = append(acs, ac)
	}
	assert.Equal(t, []string{"SOORENA-P-111-1", "SOORENA-U-222-1"}, acs)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `pubenrich_rows_updated_total{pass="merge"} 2`)
}

func TestMergeCommand_RequiresDB(t *testing.T) {
	_, err := execute(t, "merge", "--db", "", "--input", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db is required")
}

func TestGenesCommand_RequiresDB(t *testing.T) {
	_, err := execute(t, "genes", "--db", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db is required")
}
