package paket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell(1, i+1), &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseWorkbookPlainLayout(t *testing.T) {
	payload := []byte("PAKET PEKERJAAN,OPD\nPaket A,DBMCKTR\nPaket B,DINKES\n")

	sheet, err := parseWorkbook(payload, "data.csv")
	require.NoError(t, err)
	assert.False(t, sheet.isTemplate)
	require.Len(t, sheet.rows, 2)
	assert.Equal(t, 2, sheet.rowNumber(0))
	assert.Equal(t, 3, sheet.rowNumber(1))
	assert.Equal(t, "Paket A", sheet.rows[0]["PAKET PEKERJAAN"])
}

func TestParseWorkbookTemplateLayout(t *testing.T) {
	payload := buildXLSX(t, [][]interface{}{
		{"TEMPLATE IMPORT PAKET PEKERJAAN"},
		{},
		{"PAKET PEKERJAAN", "OPD"},
		{"Paket A", "DBMCKTR"},
	})

	sheet, err := parseWorkbook(payload, "upload.xlsx")
	require.NoError(t, err)
	assert.True(t, sheet.isTemplate)
	require.Len(t, sheet.rows, 1)
	assert.Equal(t, 4, sheet.rowNumber(0))
}

func TestParseWorkbookSkipsBlankRows(t *testing.T) {
	payload := []byte("PAKET PEKERJAAN,OPD\nPaket A,DBMCKTR\n,\n , \nPaket B,DINKES\n")

	sheet, err := parseWorkbook(payload, "data.csv")
	require.NoError(t, err)
	require.Len(t, sheet.rows, 2)
	assert.Equal(t, "Paket A", sheet.rows[0]["PAKET PEKERJAAN"])
	assert.Equal(t, "Paket B", sheet.rows[1]["PAKET PEKERJAAN"])
}

func TestParseWorkbookTrimsHeaders(t *testing.T) {
	payload := []byte(" PAKET PEKERJAAN , OPD \nPaket A,DBMCKTR\n")

	sheet, err := parseWorkbook(payload, "data.csv")
	require.NoError(t, err)
	require.Len(t, sheet.rows, 1)
	assert.Equal(t, "Paket A", sheet.rows[0].pick("PAKET PEKERJAAN"))
}

func TestParseWorkbookUnsupportedExtension(t *testing.T) {
	_, err := parseWorkbook([]byte("anything"), "data.pdf")
	require.Error(t, err)
}

func TestRowRecordPick(t *testing.T) {
	rec := rowRecord{"PAKET_PEKERJAAN": "snake", "KEGIATAN": ""}
	assert.Equal(t, "snake", rec.pick("PAKET PEKERJAAN", "PAKET_PEKERJAAN"))
	assert.Equal(t, "", rec.pick("KEGIATAN", "missing"))
}
