package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/shared/testutil"
)

func setupTestEnv(t *testing.T) (*CSVWriter, *config.Paths) {
	t.Helper()
	paths := config.Default().PathsFrom(t.TempDir())
	return NewCSVWriter(paths), paths
}

func testRows() []ResultRow {
	first := testutil.Candidate("SPX")
	second := testutil.Candidate("SPX")
	second.ShortCallStrike = 5450
	second.LongCallStrike = 5500
	return []ResultRow{NewResultRow(1, "SPX", first), NewResultRow(2, "SPX", second)}
}

func readCSV(t *testing.T, path string) ([]byte, [][]string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM))).ReadAll()
	require.NoError(t, err)
	return data, records
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	tests := []struct {
		name      string
		options   WriteOptions
		wantBOM   bool
		wantLines int
	}{
		{
			name:      "rows with BOM",
			options:   WriteOptions{Rows: testRows(), BOMPrefix: true},
			wantBOM:   true,
			wantLines: 3,
		},
		{
			name:      "rows without BOM",
			options:   WriteOptions{Rows: testRows()},
			wantLines: 3,
		},
		{
			name:      "empty rows keep the header",
			options:   WriteOptions{Rows: []ResultRow{}},
			wantLines: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, paths := setupTestEnv(t)

			require.NoError(t, writer.WriteCSV("out.csv", tt.options))

			data, records := readCSV(t, paths.GetExportPath("out.csv"))
			assert.Equal(t, tt.wantBOM, bytes.HasPrefix(data, utf8BOM))
			require.Len(t, records, tt.wantLines)
			assert.Equal(t, Headers, records[0])
		})
	}
}

func TestCSVWriter_Values(t *testing.T) {
	writer, paths := setupTestEnv(t)
	require.NoError(t, writer.WriteSimpleCSV("values.csv", testRows()[:1], false))

	_, records := readCSV(t, paths.GetExportPath("values.csv"))
	require.Len(t, records, 2)

	row := make(map[string]string, len(Headers))
	for i, h := range records[0] {
		row[h] = records[1][i]
	}
	assert.Equal(t, "1", row["rank"])
	assert.Equal(t, "SPX", row["symbol"])
	assert.Equal(t, "2025-06-20", row["expiration"])
	assert.Equal(t, "5150", row["long_put_strike"])
	assert.Equal(t, "5450", row["long_call_strike"])
	assert.Equal(t, "12", row["net_credit"])
	assert.Equal(t, "3800", row["max_loss"])
	assert.Equal(t, "3.1667", row["risk_reward"])
	assert.Equal(t, "1.89", row["put_distance_pct"])
	assert.Equal(t, "false", row["best_available"])
}

func TestCSVWriter_InfiniteRiskReward(t *testing.T) {
	var buf bytes.Buffer
	row := testRows()[0]
	row.RiskReward = Ratio(posInf())

	require.NoError(t, EncodeCSV(&buf, []ResultRow{row}, false))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "inf", records[1][16])
	assert.Equal(t, "risk_reward", records[0][16])
}

func TestCSVWriter_Append(t *testing.T) {
	writer, paths := setupTestEnv(t)
	rows := testRows()

	// appending to a missing file writes the header first
	require.NoError(t, writer.AppendToCSV("history.csv", rows[:1]))
	require.NoError(t, writer.AppendToCSV("history.csv", rows[1:]))

	_, records := readCSV(t, paths.GetExportPath("history.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, Headers, records[0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "2", records[2][0])
}

func TestCSVWriter_AbsolutePath(t *testing.T) {
	writer, _ := setupTestEnv(t)
	abs := filepath.Join(t.TempDir(), "nested", "abs.csv")

	require.NoError(t, writer.WriteSimpleCSV(abs, testRows(), true))
	assert.FileExists(t, abs)
}

func TestCSVWriter_UnwritableDirectory(t *testing.T) {
	writer, _ := setupTestEnv(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := writer.WriteSimpleCSV(filepath.Join(blocker, "out.csv"), testRows(), false)
	assert.Error(t, err)
}
