package refparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/knagasawa/bidsheet/internal/table"
)

func workbookBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseWorkbookSqueezesBlankLeadingCells(t *testing.T) {
	data := workbookBytes(t, [][]any{
		{"品名", "数量"},
		{"パン", 5},
		{"", "小計"},
		{"牛乳", 3},
	})

	got, err := Parse("ref.xlsx", data)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"品名", "数量"}, got.Header())
	assert.Equal(t, "パン", got[1][0])
	assert.Equal(t, "牛乳", got[2][0])
}

func TestParseCSV(t *testing.T) {
	data := []byte("品名, 数量\nパン,5\n\n牛乳,3,余分\n")

	got, err := Parse("ref.csv", data)
	require.NoError(t, err)

	assert.Equal(t, table.Matrix{
		{"品名", "数量"},
		{"パン", "5"},
		{"牛乳", "3", "余分"},
	}, got)
}

func TestParseUnsupportedExtension(t *testing.T) {
	_, err := Parse("ref.pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestParseCorruptWorkbook(t *testing.T) {
	_, err := Parse("ref.xlsx", []byte("not a zip"))
	assert.Error(t, err)
}
