package paket

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuildImportTemplate(t *testing.T) {
	payload, filename, err := BuildImportTemplate(2026)
	require.NoError(t, err)
	assert.Equal(t, "template_import_paket_2026.xlsx", filename)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Template", "Panduan"}, f.GetSheetList())

	title, err := f.GetCellValue("Template", "A1")
	require.NoError(t, err)
	assert.Contains(t, title, "TEMPLATE IMPORT PAKET PEKERJAAN")
	assert.Contains(t, title, "2026")

	// header lands on row 3 so the import reader detects the template layout
	headers, err := f.GetRows("Template")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(headers), 4)
	require.Len(t, headers[2], 18)
	assert.Equal(t, "PAKET PEKERJAAN", headers[2][0])
	assert.Equal(t, "OPD", headers[2][1])
	assert.Equal(t, "KET", headers[2][17])

	// example row
	assert.Equal(t, "DBMCKTR", headers[3][1])
	assert.Equal(t, "KONSTRUKSI", headers[3][4])

	guide, err := f.GetCellValue("Panduan", "A1")
	require.NoError(t, err)
	assert.Equal(t, "PANDUAN PENGISIAN TEMPLATE IMPORT PAKET PEKERJAAN", guide)

	wajib, err := f.GetCellValue("Panduan", "C4")
	require.NoError(t, err)
	assert.Equal(t, "Ya", wajib)
}

func TestTemplateRoundTripsThroughImporter(t *testing.T) {
	payload, _, err := BuildImportTemplate(2026)
	require.NoError(t, err)

	sheet, err := parseWorkbook(payload, "template_import_paket_2026.xlsx")
	require.NoError(t, err)
	assert.True(t, sheet.isTemplate)

	// only the example row carries data; the 50 input rows are blank
	require.Len(t, sheet.rows, 1)
	assert.Equal(t, 4, sheet.rowNumber(0))
	assert.Equal(t, "Pembangunan SPAM Desa Jubellor Kec. Sugio", sheet.rows[0].pick("PAKET PEKERJAAN"))
}
