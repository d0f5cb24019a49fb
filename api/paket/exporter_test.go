package paket

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeReportStore struct {
	pakets []Paket
	err    error
}

func (f *fakeReportStore) FindPaket(ctx context.Context, filter ReportFilter) ([]Paket, error) {
	return f.pakets, f.err
}

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func reportPaket(name string, pagu, nilai, realisasi int64) Paket {
	return Paket{
		Name:           name,
		Kegiatan:       "Kegiatan X",
		KodeRekening:   "KR-1",
		Kategori:       "KONSTRUKSI",
		Status:         "ACTIVE",
		OpdID:          "opd-1",
		OpdName:        "Dinas PU",
		Pagu:           dec(pagu),
		Nilai:          dec(nilai),
		NilaiRealisasi: dec(realisasi),
		Tahun:          2026,
		CreatedAt:      time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func rawCell(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return v
}

func TestBuildLaporanNoData(t *testing.T) {
	_, _, err := BuildLaporan(context.Background(), &fakeReportStore{}, ReportFilter{Tahun: 2026})
	require.ErrorIs(t, err, ErrNoData)
}

func TestBuildLaporanLayoutAndTotals(t *testing.T) {
	store := &fakeReportStore{pakets: []Paket{
		reportPaket("Paket A", 500000, 300000, 150000),
		reportPaket("Paket B", 700000, 300000, 0),
	}}

	payload, filename, err := BuildLaporan(context.Background(), store, ReportFilter{Tahun: 2026})
	require.NoError(t, err)
	assert.Equal(t, "laporan_paket_2026.xlsx", filename)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close()
	sheet := "Laporan 2026"

	assert.Equal(t, "DAFTAR KEGIATAN PROYEK TAHUN 2026", rawCell(t, f, sheet, "A1"))
	assert.Equal(t, "APBD KABUPATEN LAMONGAN", rawCell(t, f, sheet, "A2"))
	assert.Equal(t, "OPD : DINAS PU", rawCell(t, f, sheet, "A5"))
	assert.Equal(t, "NO", rawCell(t, f, sheet, "A6"))
	assert.Equal(t, "S P M K", rawCell(t, f, sheet, "G6"))
	assert.Equal(t, "MULAI", rawCell(t, f, sheet, "G7"))
	assert.Equal(t, "KR-1  Kegiatan X", rawCell(t, f, sheet, "A8"))

	assert.Equal(t, "1", rawCell(t, f, sheet, "A9"))
	assert.Equal(t, "Paket A", rawCell(t, f, sheet, "B9"))
	assert.Equal(t, "500000", rawCell(t, f, sheet, "C9"))
	assert.Equal(t, "300000", rawCell(t, f, sheet, "D9"))
	assert.Equal(t, "200000", rawCell(t, f, sheet, "E9"))
	assert.Equal(t, "ACTIVE", rawCell(t, f, sheet, "N9"))
	assert.Equal(t, "2", rawCell(t, f, sheet, "A10"))

	assert.Equal(t, "TOTAL", rawCell(t, f, sheet, "A11"))
	assert.Equal(t, "1200000", rawCell(t, f, sheet, "C11"))
	assert.Equal(t, "600000", rawCell(t, f, sheet, "D11"))
	assert.Equal(t, "600000", rawCell(t, f, sheet, "E11"))

	assert.Equal(t, "GRAND TOTAL SEMUA OPD", rawCell(t, f, sheet, "A14"))
	assert.Equal(t, "1200000", rawCell(t, f, sheet, "C14"))
}

func TestBuildLaporanNegativeSisa(t *testing.T) {
	over := reportPaket("Paket Over", 100000, 250000, 0)
	store := &fakeReportStore{pakets: []Paket{over}}

	payload, _, err := BuildLaporan(context.Background(), store, ReportFilter{Tahun: 2026})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close()

	// overruns are shown as-is, never clamped to zero
	assert.Equal(t, "-150000", rawCell(t, f, "Laporan 2026", "E9"))
}

func TestGroupByOpdFirstSeenOrder(t *testing.T) {
	a := reportPaket("A", 0, 0, 0)
	b := reportPaket("B", 0, 0, 0)
	b.OpdID = "opd-2"
	b.OpdName = "Dinas Kesehatan"
	c := reportPaket("C", 0, 0, 0)

	groups := groupByOpd([]Paket{a, b, c})
	require.Len(t, groups, 2)
	assert.Equal(t, "DINAS PU", groups[0].label)
	assert.Len(t, groups[0].items, 2)
	assert.Equal(t, "DINAS KESEHATAN", groups[1].label)
	assert.Len(t, groups[1].items, 1)

	// missing unit rows collect under a shared placeholder
	orphan := reportPaket("D", 0, 0, 0)
	orphan.OpdID = ""
	orphan.OpdName = ""
	groups = groupByOpd([]Paket{orphan})
	require.Len(t, groups, 1)
	assert.Equal(t, "TANPA OPD", groups[0].label)
}

func TestGroupByRekening(t *testing.T) {
	a := reportPaket("A", 0, 0, 0)
	b := reportPaket("B", 0, 0, 0)
	b.KodeRekening = "KR-2"
	c := reportPaket("C", 0, 0, 0)
	c.KodeRekening = "KR-1"
	c.Kegiatan = "Kegiatan Y"

	groups := groupByRekening([]Paket{a, b, c})
	require.Len(t, groups, 3)
	assert.Equal(t, "KR-1", groups[0].kode)
	assert.Equal(t, "Kegiatan X", groups[0].kegiatan)
	assert.Equal(t, "KR-2", groups[1].kode)
	assert.Equal(t, "Kegiatan Y", groups[2].kegiatan)
}

func TestProgresKeuangan(t *testing.T) {
	assert.Equal(t, 50.0, progresKeuangan(dec(150000), dec(300000)))
	assert.Equal(t, 0.0, progresKeuangan(dec(150000), decimal.Zero))
}
