package paket

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"SimonPaket/api/audit"
	"SimonPaket/api/constants"

	"github.com/shopspring/decimal"
)

// ErrEmptyWorkbook aborts an import before any row is processed.
var ErrEmptyWorkbook = errors.New(constants.ErrEmptyWorkbook)

// OpdRef is the bulk-preloaded unit lookup row.
type OpdRef struct {
	ID   string
	Code string
}

// ImportStore is the persistence boundary the import run needs.
type ImportStore interface {
	// OpdRefs preloads every unit id/code pair for the run.
	OpdRefs(ctx context.Context) ([]OpdRef, error)
	// LatestPaketCode returns the code of the most recently created paket,
	// or "" when the store is empty.
	LatestPaketCode(ctx context.Context) (string, error)
	// UpsertPaketByCode inserts the draft under code, or merges its fields
	// into the existing row keyed by that code. Atomic per call.
	UpsertPaketByCode(ctx context.Context, code string, d paketDraft) error
	// AppendAudit records the run summary. Fire-and-forget.
	AppendAudit(e audit.Entry)
}

// Importer runs one spreadsheet import end to end.
type Importer struct {
	store ImportStore
	now   func() time.Time
}

func NewImporter(store ImportStore) *Importer {
	return &Importer{store: store, now: time.Now}
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// codeAllocator hands out sequential paket codes for one import run. The
// counter is seeded once from the latest stored code and is run-local:
// concurrent imports are not serialized against each other.
type codeAllocator struct {
	next int
}

func newCodeAllocator(latestCode string) *codeAllocator {
	next := 1
	if m := trailingDigits.FindStringSubmatch(latestCode); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			next = n + 1
		}
	}
	return &codeAllocator{next: next}
}

func (a *codeAllocator) Next(tahun int) string {
	code := fmt.Sprintf("PK-%d-%04d", tahun, a.next)
	a.next++
	return code
}

// parseAmount coerces a money cell into an exact decimal. Thousands
// separators are stripped; anything unparseable becomes zero (optional
// numeric columns fail soft).
func parseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parsePercent coerces a percentage cell, zero on failure.
func parsePercent(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return f
}

// sheetEpoch is spreadsheet serial day 0 (the conventional 1900 system with
// its off-by-two leap-year quirk already folded in).
var sheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	constants.DateFormat,
	"2006/01/02",
	constants.DateFormatAlt,
	constants.DateFormatID,
	"2 Jan 2006",
	"1/2/06",
	"01-02-06",
}

// parseSheetDate accepts a textual date or a raw serial number; anything
// unparseable becomes nil, never an error.
func parseSheetDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t := sheetEpoch.Add(time.Duration(serial * 24 * float64(time.Hour)))
		t = t.Truncate(24 * time.Hour)
		return &t
	}
	return nil
}

// normalizeRow coerces one raw row into a draft. A non-empty reason string
// means the row failed validation; the reasons mirror what the UI shows.
// Required checks run in a fixed order: name, kegiatan, kategori, OPD.
func normalizeRow(row rowRecord, opdIDs map[string]string, defaultTahun int) (paketDraft, string) {
	var d paketDraft

	d.Name = row.pick("PAKET PEKERJAAN", "PAKET_PEKERJAAN", "name")
	d.Kegiatan = row.pick("KEGIATAN", "kegiatan")
	d.KodeRekening = row.pick("KODE REKENING", "KODE_REKENING", "kode_rekening")
	opdCode := strings.ToUpper(row.pick("OPD", "OPD_CODE", "opd_code"))
	d.Kategori = strings.ToUpper(row.pick("KATEGORI", "kategori"))
	d.Pagu = parseAmount(row.pick("PAGU ANGGARAN", "PAGU_ANGGARAN", "pagu"))
	d.Nilai = parseAmount(row.pick("NILAI KONTRAK", "NILAI_KONTRAK", "nilai"))
	d.NilaiRealisasi = parseAmount(row.pick("NILAI REALISASI", "NILAI_REALISASI", "nilai_realisasi"))
	d.Pelaksana = row.pick("PELAKSANA", "pelaksana")
	d.SumberDana = row.pick("SUMBER DANA", "SUMBER_DANA", "sumber_dana")
	if d.SumberDana == "" {
		d.SumberDana = constants.DefaultSumberDana
	}
	d.Lokasi = row.pick("LOKASI", "lokasi")
	if d.Lokasi == "" {
		d.Lokasi = "-"
	}
	d.Keterangan = row.pick("KET", "keterangan")
	d.Progres = parsePercent(row.pick("PROGRES FISIK", "PROGRES_FISIK", "progres"))
	d.NomorKontrak = row.pick("NOMOR KONTRAK", "NOMOR_KONTRAK", "nomor_kontrak")
	d.NoSPMK = row.pick("NO SPMK", "NO_SPMK", "no_spmk")
	d.TanggalMulai = parseSheetDate(row.pick("SPMK MULAI", "SPMK_MULAI", "tanggal_mulai"))
	d.TanggalSelesai = parseSheetDate(row.pick("SPMK SELESAI", "SPMK_SELESAI", "tanggal_selesai"))

	d.Tahun = defaultTahun
	if n, err := strconv.Atoi(row.pick("TAHUN", "tahun")); err == nil && n > 0 {
		d.Tahun = n
	}

	if d.Name == "" {
		return d, "PAKET PEKERJAAN kosong"
	}
	if d.Kegiatan == "" {
		return d, "KEGIATAN kosong"
	}
	valid := false
	for _, k := range constants.ValidKategori {
		if d.Kategori == k {
			valid = true
			break
		}
	}
	if !valid {
		return d, fmt.Sprintf("KATEGORI tidak valid (%s)", d.Kategori)
	}
	opdID, ok := opdIDs[opdCode]
	if !ok {
		return d, fmt.Sprintf("OPD tidak ditemukan (%s)", opdCode)
	}
	d.OpdID = opdID

	return d, ""
}

// Run executes one import: parse, validate, allocate codes, upsert.
// Structural failures (unreadable file, empty sheet, lookup preload) abort
// with an error; row-level failures are accumulated and never abort
// siblings. Rows are processed strictly in order because the allocator
// counter depends on it.
func (im *Importer) Run(ctx context.Context, payload []byte, filename, actorID string) (*ImportOutcome, error) {
	sheet, err := parseWorkbook(payload, filename)
	if err != nil {
		return nil, err
	}
	if len(sheet.rows) == 0 {
		return nil, ErrEmptyWorkbook
	}

	refs, err := im.store.OpdRefs(ctx)
	if err != nil {
		return nil, err
	}
	opdIDs := make(map[string]string, len(refs))
	for _, ref := range refs {
		opdIDs[strings.ToUpper(ref.Code)] = ref.ID
	}

	latest, err := im.store.LatestPaketCode(ctx)
	if err != nil {
		return nil, err
	}
	alloc := newCodeAllocator(latest)

	outcome := &ImportOutcome{Errors: []string{}}
	defaultTahun := im.now().Year()

	for i, row := range sheet.rows {
		rowNum := sheet.rowNumber(i)

		draft, reason := normalizeRow(row, opdIDs, defaultTahun)
		if reason != "" {
			outcome.Failed++
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("Baris %d: %s", rowNum, reason))
			continue
		}

		code := alloc.Next(draft.Tahun)
		if err := im.store.UpsertPaketByCode(ctx, code, draft); err != nil {
			outcome.Failed++
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("Baris %d: %s", rowNum, err.Error()))
			continue
		}
		outcome.Success++
	}

	im.store.AppendAudit(audit.Entry{
		UserID:   actorID,
		Action:   "IMPORT_PAKET",
		Entity:   "Paket",
		EntityID: "BULK",
		Details: map[string]interface{}{
			"total":   len(sheet.rows),
			"success": outcome.Success,
			"failed":  outcome.Failed,
		},
	})

	return outcome, nil
}
