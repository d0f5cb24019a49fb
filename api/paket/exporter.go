package paket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SimonPaket/api/constants"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ErrNoData signals an empty filtered set. Not an error condition for the
// core; the transport layer maps it to a 404 with a descriptive message.
var ErrNoData = errors.New(constants.ErrNoExportData)

// ReportStore is the persistence boundary of the report builder. Rows come
// back ordered by OPD name, kode rekening, creation time (ascending,
// stable).
type ReportStore interface {
	FindPaket(ctx context.Context, f ReportFilter) ([]Paket, error)
}

const reportCols = 14

const rupiahFmt = `"Rp "#,##0`
const percentFmt = `0.00"%"`

var statusFills = map[string]string{
	"PENDING":   "FEF3C7",
	"ACTIVE":    "DBEAFE",
	"COMPLETED": "D1FAE5",
	"CANCELLED": "FEE2E2",
}

// reportStyles carries the style ids used across the sheet.
type reportStyles struct {
	title      int
	subtitle   int
	opd        int
	header     int
	group      int
	data       int
	dataCenter int
	money      int
	percent    int
	total      int
	totalMoney int
	grand      int
	grandMoney int
	status     map[string]int
}

func borderAll() []excelize.Border {
	return []excelize.Border{
		{Type: "top", Style: 1, Color: "000000"},
		{Type: "left", Style: 1, Color: "000000"},
		{Type: "bottom", Style: 1, Color: "000000"},
		{Type: "right", Style: 1, Color: "000000"},
	}
}

func borderMedium() []excelize.Border {
	return []excelize.Border{
		{Type: "top", Style: 2, Color: "000000"},
		{Type: "left", Style: 2, Color: "000000"},
		{Type: "bottom", Style: 2, Color: "000000"},
		{Type: "right", Style: 2, Color: "000000"},
	}
}

func solidFill(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
}

func newReportStyles(f *excelize.File) (*reportStyles, error) {
	s := &reportStyles{status: make(map[string]int)}
	var err error

	rp := rupiahFmt
	pct := percentFmt

	if s.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Family: "Arial"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err != nil {
		return nil, err
	}
	if s.subtitle, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 11, Family: "Arial"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err != nil {
		return nil, err
	}
	if s.opd, err = f.NewStyle(&excelize.Style{
		Fill:      solidFill("D6E4F0"),
		Font:      &excelize.Font{Bold: true, Size: 11, Family: "Arial"},
		Border:    borderMedium(),
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true},
	}); err != nil {
		return nil, err
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Fill:      solidFill("1F3864"),
		Font:      &excelize.Font{Bold: true, Size: 10, Family: "Arial", Color: "FFFFFF"},
		Border:    borderAll(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	}); err != nil {
		return nil, err
	}
	if s.group, err = f.NewStyle(&excelize.Style{
		Fill:      solidFill("E8F4FD"),
		Font:      &excelize.Font{Bold: true, Italic: true, Size: 9, Family: "Arial"},
		Border:    borderAll(),
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true},
	}); err != nil {
		return nil, err
	}
	if s.data, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 9, Family: "Arial"},
		Border:    borderAll(),
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true},
	}); err != nil {
		return nil, err
	}
	if s.dataCenter, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 9, Family: "Arial"},
		Border:    borderAll(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	}); err != nil {
		return nil, err
	}
	if s.money, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Size: 9, Family: "Arial"},
		Border:       borderAll(),
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center", WrapText: true},
		CustomNumFmt: &rp,
	}); err != nil {
		return nil, err
	}
	if s.percent, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Size: 9, Family: "Arial"},
		Border:       borderAll(),
		Alignment:    &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		CustomNumFmt: &pct,
	}); err != nil {
		return nil, err
	}
	if s.total, err = f.NewStyle(&excelize.Style{
		Fill:      solidFill("FFF2CC"),
		Font:      &excelize.Font{Bold: true, Size: 10, Family: "Arial"},
		Border:    borderAll(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err != nil {
		return nil, err
	}
	if s.totalMoney, err = f.NewStyle(&excelize.Style{
		Fill:         solidFill("FFF2CC"),
		Font:         &excelize.Font{Bold: true, Size: 10, Family: "Arial"},
		Border:       borderAll(),
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		CustomNumFmt: &rp,
	}); err != nil {
		return nil, err
	}
	if s.grand, err = f.NewStyle(&excelize.Style{
		Fill:      solidFill("FFC000"),
		Font:      &excelize.Font{Bold: true, Size: 12, Family: "Arial"},
		Border:    borderMedium(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err != nil {
		return nil, err
	}
	if s.grandMoney, err = f.NewStyle(&excelize.Style{
		Fill:         solidFill("FFC000"),
		Font:         &excelize.Font{Bold: true, Size: 12, Family: "Arial"},
		Border:       borderMedium(),
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		CustomNumFmt: &rp,
	}); err != nil {
		return nil, err
	}
	for status, color := range statusFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      solidFill(color),
			Font:      &excelize.Font{Bold: true, Size: 9, Family: "Arial"},
			Border:    borderAll(),
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		})
		if err != nil {
			return nil, err
		}
		s.status[status] = id
	}
	return s, nil
}

// opdGroup keeps first-seen insertion order of units and their rows.
type opdGroup struct {
	label string
	items []Paket
}

func groupByOpd(pakets []Paket) []opdGroup {
	var groups []opdGroup
	index := make(map[string]int)
	for _, p := range pakets {
		key := p.OpdID
		if key == "" {
			key = "__NO_OPD__"
		}
		i, ok := index[key]
		if !ok {
			label := "TANPA OPD"
			if p.OpdName != "" {
				label = strings.ToUpper(p.OpdName)
			}
			i = len(groups)
			index[key] = i
			groups = append(groups, opdGroup{label: label})
		}
		groups[i].items = append(groups[i].items, p)
	}
	return groups
}

// rekeningGroup splits one unit's rows by (kode rekening, kegiatan),
// first-seen order.
type rekeningGroup struct {
	kode     string
	kegiatan string
	items    []Paket
}

func groupByRekening(items []Paket) []rekeningGroup {
	var groups []rekeningGroup
	index := make(map[string]int)
	for _, p := range items {
		key := p.KodeRekening + "||" + p.Kegiatan
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, rekeningGroup{kode: p.KodeRekening, kegiatan: p.Kegiatan})
		}
		groups[i].items = append(groups[i].items, p)
	}
	return groups
}

// progresKeuangan is the financial-progress percentage; exactly zero when
// nilai is zero.
func progresKeuangan(nilaiRealisasi, nilai decimal.Decimal) float64 {
	if nilai.IsZero() {
		return 0
	}
	pct, _ := nilaiRealisasi.Div(nilai).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

func fmtDateID(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(constants.DateFormatID)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// BuildLaporan renders the filtered paket set as a grouped workbook report
// with per-OPD subtotals and a grand total. Returns ErrNoData when the
// filter matches nothing.
func BuildLaporan(ctx context.Context, store ReportStore, filter ReportFilter) ([]byte, string, error) {
	targetTahun := filter.Tahun
	if targetTahun == 0 {
		targetTahun = time.Now().Year()
	}

	pakets, err := store.FindPaket(ctx, filter)
	if err != nil {
		return nil, "", err
	}
	if len(pakets) == 0 {
		return nil, "", ErrNoData
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := fmt.Sprintf("Laporan %d", targetTahun)
	f.SetSheetName("Sheet1", sheet)

	styles, err := newReportStyles(f)
	if err != nil {
		return nil, "", err
	}

	widths := []float64{5, 50, 18, 18, 18, 28, 14, 14, 12, 14, 14, 25, 20, 12}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	r := 1
	addTitle := func(text string, style int, height float64) {
		f.SetCellValue(sheet, cell(1, r), text)
		f.MergeCell(sheet, cell(1, r), cell(reportCols, r))
		f.SetCellStyle(sheet, cell(1, r), cell(reportCols, r), style)
		f.SetRowHeight(sheet, r, height)
		r++
	}
	addTitle(fmt.Sprintf("DAFTAR KEGIATAN PROYEK TAHUN %d", targetTahun), styles.title, 24)
	addTitle("APBD KABUPATEN LAMONGAN", styles.title, 24)
	addTitle(fmt.Sprintf("TAHUN ANGGARAN %d", targetTahun), styles.subtitle, 18)
	r++ // spacer

	grandPagu, grandNilai, grandSisa := decimal.Zero, decimal.Zero, decimal.Zero

	for _, og := range groupByOpd(pakets) {
		// OPD banner
		f.SetCellValue(sheet, cell(1, r), "OPD : "+og.label)
		f.MergeCell(sheet, cell(1, r), cell(reportCols, r))
		f.SetCellStyle(sheet, cell(1, r), cell(reportCols, r), styles.opd)
		f.SetRowHeight(sheet, r, 22)
		r++

		// Two-row header with SPMK and PROGRES REALISASI sub-columns
		h1 := r
		h2 := r + 1
		headerTop := []interface{}{
			"NO", "PAKET PEKERJAAN", "PAGU ANGGARAN", "NILAI KONTRAK", "SISA ANGGARAN",
			"PELAKSANA", "S P M K", "", "PROGRES REALISASI", "",
			"SUMBER DANA", "LOKASI", "KET", "STATUS",
		}
		headerSub := []interface{}{
			"", "", "", "", "", "", "MULAI", "SELESAI", "FISIK(%)", "KEUANGAN(%)", "", "", "", "",
		}
		f.SetSheetRow(sheet, cell(1, h1), &headerTop)
		f.SetSheetRow(sheet, cell(1, h2), &headerSub)
		f.MergeCell(sheet, cell(7, h1), cell(8, h1))
		f.MergeCell(sheet, cell(9, h1), cell(10, h1))
		for _, c := range []int{1, 2, 3, 4, 5, 6, 11, 12, 13, 14} {
			f.MergeCell(sheet, cell(c, h1), cell(c, h2))
		}
		f.SetCellStyle(sheet, cell(1, h1), cell(reportCols, h2), styles.header)
		f.SetRowHeight(sheet, h1, 28)
		f.SetRowHeight(sheet, h2, 20)
		r += 2

		seq := 1
		totalPagu, totalNilai, totalSisa := decimal.Zero, decimal.Zero, decimal.Zero

		for _, rg := range groupByRekening(og.items) {
			label := "  " + rg.kegiatan
			if rg.kode != "" {
				label = rg.kode + "  " + rg.kegiatan
			}
			f.SetCellValue(sheet, cell(1, r), label)
			f.MergeCell(sheet, cell(1, r), cell(reportCols, r))
			f.SetCellStyle(sheet, cell(1, r), cell(reportCols, r), styles.group)
			f.SetRowHeight(sheet, r, 18)
			r++

			for _, p := range rg.items {
				sisa := p.Pagu.Sub(p.Nilai) // may go negative, shown as-is
				progresKeu := progresKeuangan(p.NilaiRealisasi, p.Nilai)
				totalPagu = totalPagu.Add(p.Pagu)
				totalNilai = totalNilai.Add(p.Nilai)
				totalSisa = totalSisa.Add(sisa)

				row := []interface{}{
					seq, p.Name,
					p.Pagu.InexactFloat64(), p.Nilai.InexactFloat64(), sisa.InexactFloat64(),
					p.Pelaksana,
					fmtDateID(p.TanggalMulai), fmtDateID(p.TanggalSelesai),
					p.Progres, progresKeu,
					p.SumberDana, p.Lokasi, p.Keterangan, p.Status,
				}
				f.SetSheetRow(sheet, cell(1, r), &row)
				f.SetRowHeight(sheet, r, 18)
				f.SetCellStyle(sheet, cell(1, r), cell(1, r), styles.dataCenter)
				f.SetCellStyle(sheet, cell(2, r), cell(2, r), styles.data)
				f.SetCellStyle(sheet, cell(3, r), cell(5, r), styles.money)
				f.SetCellStyle(sheet, cell(6, r), cell(6, r), styles.data)
				f.SetCellStyle(sheet, cell(7, r), cell(8, r), styles.dataCenter)
				f.SetCellStyle(sheet, cell(9, r), cell(10, r), styles.percent)
				f.SetCellStyle(sheet, cell(11, r), cell(13, r), styles.data)
				if id, ok := styles.status[p.Status]; ok {
					f.SetCellStyle(sheet, cell(14, r), cell(14, r), id)
				} else {
					f.SetCellStyle(sheet, cell(14, r), cell(14, r), styles.dataCenter)
				}
				seq++
				r++
			}
		}

		// TOTAL per OPD
		totalRow := []interface{}{
			"TOTAL", "",
			totalPagu.InexactFloat64(), totalNilai.InexactFloat64(), totalSisa.InexactFloat64(),
		}
		f.SetSheetRow(sheet, cell(1, r), &totalRow)
		f.MergeCell(sheet, cell(1, r), cell(2, r))
		f.SetCellStyle(sheet, cell(1, r), cell(reportCols, r), styles.total)
		f.SetCellStyle(sheet, cell(3, r), cell(5, r), styles.totalMoney)
		f.SetRowHeight(sheet, r, 20)
		r++

		grandPagu = grandPagu.Add(totalPagu)
		grandNilai = grandNilai.Add(totalNilai)
		grandSisa = grandSisa.Add(totalSisa)
		r += 2 // spacer rows between units
	}

	grandRow := []interface{}{
		"GRAND TOTAL SEMUA OPD", "",
		grandPagu.InexactFloat64(), grandNilai.InexactFloat64(), grandSisa.InexactFloat64(),
	}
	f.SetSheetRow(sheet, cell(1, r), &grandRow)
	f.MergeCell(sheet, cell(1, r), cell(2, r))
	f.SetCellStyle(sheet, cell(1, r), cell(reportCols, r), styles.grand)
	f.SetCellStyle(sheet, cell(3, r), cell(5, r), styles.grandMoney)
	f.SetRowHeight(sheet, r, 26)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("laporan_paket_%d.xlsx", targetTahun), nil
}
