package paket

import (
	"context"
	"errors"
	"testing"
	"time"

	"SimonPaket/api/audit"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImportStore struct {
	refs    []OpdRef
	latest  string
	upserts map[string]paketDraft
	codes   []string
	audits  []audit.Entry
	failOn  map[string]error
}

func newFakeImportStore() *fakeImportStore {
	return &fakeImportStore{
		refs:    []OpdRef{{ID: "opd-1", Code: "DBMCKTR"}, {ID: "opd-2", Code: "DINKES"}},
		upserts: map[string]paketDraft{},
	}
}

func (f *fakeImportStore) OpdRefs(ctx context.Context) ([]OpdRef, error) {
	return f.refs, nil
}

func (f *fakeImportStore) LatestPaketCode(ctx context.Context) (string, error) {
	return f.latest, nil
}

func (f *fakeImportStore) UpsertPaketByCode(ctx context.Context, code string, d paketDraft) error {
	if err, ok := f.failOn[code]; ok {
		return err
	}
	f.upserts[code] = d
	f.codes = append(f.codes, code)
	return nil
}

func (f *fakeImportStore) AppendAudit(e audit.Entry) {
	f.audits = append(f.audits, e)
}

const importHeader = "PAKET PEKERJAAN,KEGIATAN,KATEGORI,OPD,TAHUN,PAGU ANGGARAN,NILAI KONTRAK\n"

func fixedImporter(store ImportStore) *Importer {
	im := NewImporter(store)
	im.now = func() time.Time { return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC) }
	return im
}

func TestImporterRunMixedRows(t *testing.T) {
	store := newFakeImportStore()
	im := fixedImporter(store)

	payload := []byte(importHeader +
		"Pembangunan SPAM Desa A,Penyediaan Air Minum,KONSTRUKSI,DBMCKTR,2026,300000000,250000000\n" +
		",Penyediaan Air Minum,KONSTRUKSI,DBMCKTR,2026,0,0\n" +
		"Paket B,Kegiatan B,FOO,DBMCKTR,2026,0,0\n" +
		"Paket C,Kegiatan C,BARANG,XXX,2026,0,0\n")

	outcome, err := im.Run(context.Background(), payload, "import.csv", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Success)
	assert.Equal(t, 3, outcome.Failed)
	require.Len(t, outcome.Errors, 3)
	assert.Equal(t, "Baris 3: PAKET PEKERJAAN kosong", outcome.Errors[0])
	assert.Equal(t, "Baris 4: KATEGORI tidak valid (FOO)", outcome.Errors[1])
	assert.Equal(t, "Baris 5: OPD tidak ditemukan (XXX)", outcome.Errors[2])

	require.Len(t, store.codes, 1)
	assert.Equal(t, "PK-2026-0001", store.codes[0])

	d := store.upserts["PK-2026-0001"]
	assert.Equal(t, "Pembangunan SPAM Desa A", d.Name)
	assert.Equal(t, "opd-1", d.OpdID)
	assert.True(t, d.Pagu.Equal(decimal.NewFromInt(300000000)))
	assert.True(t, d.Nilai.Equal(decimal.NewFromInt(250000000)))

	require.Len(t, store.audits, 1)
	entry := store.audits[0]
	assert.Equal(t, "IMPORT_PAKET", entry.Action)
	assert.Equal(t, "BULK", entry.EntityID)
	assert.Equal(t, 4, entry.Details["total"])
	assert.Equal(t, 1, entry.Details["success"])
	assert.Equal(t, 3, entry.Details["failed"])
}

func TestImporterSeedsCodesFromLatest(t *testing.T) {
	store := newFakeImportStore()
	store.latest = "PK-2025-0042"
	im := fixedImporter(store)

	payload := []byte(importHeader +
		"Paket A,Kegiatan A,KONSTRUKSI,DBMCKTR,2026,0,0\n" +
		"Paket B,Kegiatan B,BARANG,DINKES,2026,0,0\n")

	outcome, err := im.Run(context.Background(), payload, "import.csv", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Success)
	assert.Equal(t, []string{"PK-2026-0043", "PK-2026-0044"}, store.codes)
}

func TestImporterCountsStoreFailures(t *testing.T) {
	store := newFakeImportStore()
	store.failOn = map[string]error{"PK-2026-0001": errors.New("duplicate key")}
	im := fixedImporter(store)

	payload := []byte(importHeader +
		"Paket A,Kegiatan A,KONSTRUKSI,DBMCKTR,2026,0,0\n" +
		"Paket B,Kegiatan B,BARANG,DINKES,2026,0,0\n")

	outcome, err := im.Run(context.Background(), payload, "import.csv", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Success)
	assert.Equal(t, 1, outcome.Failed)
	require.Len(t, outcome.Errors, 1)
	assert.Equal(t, "Baris 2: duplicate key", outcome.Errors[0])
	// allocator keeps counting across failed rows
	assert.Equal(t, []string{"PK-2026-0002"}, store.codes)
}

func TestImporterEmptyWorkbook(t *testing.T) {
	store := newFakeImportStore()
	im := fixedImporter(store)

	_, err := im.Run(context.Background(), []byte(importHeader), "import.csv", "user-1")
	require.ErrorIs(t, err, ErrEmptyWorkbook)
	assert.Empty(t, store.audits)
}

func TestNormalizeRowDefaults(t *testing.T) {
	opdIDs := map[string]string{"DBMCKTR": "opd-1"}
	row := rowRecord{
		"PAKET PEKERJAAN": "Paket A",
		"KEGIATAN":        "Kegiatan A",
		"KATEGORI":        "konstruksi",
		"OPD":             "dbmcktr",
	}

	d, reason := normalizeRow(row, opdIDs, 2026)
	require.Empty(t, reason)
	assert.Equal(t, "KONSTRUKSI", d.Kategori)
	assert.Equal(t, "opd-1", d.OpdID)
	assert.Equal(t, 2026, d.Tahun)
	assert.Equal(t, "APBD", d.SumberDana)
	assert.Equal(t, "-", d.Lokasi)
	assert.True(t, d.Pagu.IsZero())
}

func TestNormalizeRowValidationOrder(t *testing.T) {
	opdIDs := map[string]string{"DBMCKTR": "opd-1"}

	// name is checked before kegiatan even when both are missing
	_, reason := normalizeRow(rowRecord{"KATEGORI": "FOO", "OPD": "XXX"}, opdIDs, 2026)
	assert.Equal(t, "PAKET PEKERJAAN kosong", reason)

	_, reason = normalizeRow(rowRecord{"PAKET PEKERJAAN": "A", "KATEGORI": "FOO"}, opdIDs, 2026)
	assert.Equal(t, "KEGIATAN kosong", reason)

	_, reason = normalizeRow(rowRecord{
		"PAKET PEKERJAAN": "A", "KEGIATAN": "B", "KATEGORI": "FOO", "OPD": "DBMCKTR",
	}, opdIDs, 2026)
	assert.Equal(t, "KATEGORI tidak valid (FOO)", reason)
}

func TestCodeAllocator(t *testing.T) {
	alloc := newCodeAllocator("")
	assert.Equal(t, "PK-2026-0001", alloc.Next(2026))
	assert.Equal(t, "PK-2026-0002", alloc.Next(2026))

	alloc = newCodeAllocator("PK-2024-0099")
	assert.Equal(t, "PK-2026-0100", alloc.Next(2026))

	// codes without trailing digits fall back to 1
	alloc = newCodeAllocator("LEGACY-CODE")
	assert.Equal(t, "PK-2026-0001", alloc.Next(2026))
}

func TestParseAmount(t *testing.T) {
	assert.True(t, parseAmount("1,200,000").Equal(decimal.NewFromInt(1200000)))
	assert.True(t, parseAmount(" 300000000 ").Equal(decimal.NewFromInt(300000000)))
	assert.True(t, parseAmount("12.5").Equal(decimal.RequireFromString("12.5")))
	assert.True(t, parseAmount("").IsZero())
	assert.True(t, parseAmount("abc").IsZero())
}

func TestParseSheetDate(t *testing.T) {
	d := parseSheetDate("2026-01-15")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), *d)

	// spreadsheet serial numbers use the 1899-12-30 epoch
	d = parseSheetDate("45000")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC), *d)

	assert.Nil(t, parseSheetDate(""))
	assert.Nil(t, parseSheetDate("not a date"))
}
