package paket

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const templateCols = 18

var templateHeaders = []interface{}{
	"PAKET PEKERJAAN", "OPD", "KODE REKENING", "KEGIATAN", "KATEGORI", "TAHUN",
	"PAGU ANGGARAN", "NILAI KONTRAK", "NILAI REALISASI", "PELAKSANA",
	"NOMOR KONTRAK", "NO SPMK", "SPMK MULAI", "SPMK SELESAI", "PROGRES FISIK",
	"SUMBER DANA", "LOKASI", "KET",
}

var templateWidths = []float64{55, 14, 22, 55, 16, 8, 18, 18, 18, 30, 22, 16, 14, 14, 12, 14, 25, 20}

// guideRow documents one template column on the Panduan sheet.
type guideRow struct {
	kolom      string
	keterangan string
	wajib      bool
	contoh     string
}

var guideRows = []guideRow{
	{"PAKET PEKERJAAN", "Nama paket pekerjaan / sub-kegiatan", true, "Pembangunan SPAM Desa X"},
	{"OPD", "Kode OPD yang terdaftar di sistem", true, "DBMCKTR"},
	{"KODE REKENING", "Kode rekening anggaran", false, "1.03.03.2.01.0028"},
	{"KEGIATAN", "Nama kegiatan induk", true, "Pembangunan SPAM Jaringan Perpipaan"},
	{"KATEGORI", "KONSTRUKSI / KONSULTANSI / BARANG / JASA_LAINNYA", true, "KONSTRUKSI"},
	{"TAHUN", "Tahun anggaran (angka)", true, "2026"},
	{"PAGU ANGGARAN", "Nilai pagu anggaran (angka, tanpa titik/koma)", true, "300000000"},
	{"NILAI KONTRAK", "Nilai kontrak (angka)", true, "300000000"},
	{"NILAI REALISASI", "Nilai realisasi keuangan (angka)", false, "0"},
	{"PELAKSANA", "Nama perusahaan pelaksana", false, "CV Contoh"},
	{"NOMOR KONTRAK", "Nomor kontrak pekerjaan", false, "600/001.PKT/2026"},
	{"NO SPMK", "Nomor SPMK", false, "700/001.SPMK/2026"},
	{"SPMK MULAI", "Tanggal mulai SPMK (format: YYYY-MM-DD)", false, "2026-01-15"},
	{"SPMK SELESAI", "Tanggal selesai SPMK (format: YYYY-MM-DD)", false, "2026-12-31"},
	{"PROGRES FISIK", "Progres fisik dalam persen (0-100)", false, "0"},
	{"SUMBER DANA", "APBD / APBN / DAK / BLUD / HIBAH", false, "APBD"},
	{"LOKASI", "Lokasi pekerjaan", true, "Kec. Sugio, Kab. Lamongan"},
	{"KET", "Keterangan tambahan", false, ""},
}

// BuildImportTemplate renders the blank import workbook: a Template sheet
// with one styled example row plus fifty empty input rows, and a Panduan
// sheet describing every column.
func BuildImportTemplate(targetTahun int) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	rp := rupiahFmt
	intPct := `0"%"`

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 13, Family: "Arial", Color: "1F3864"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, "", err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      solidFill("1F3864"),
		Font:      &excelize.Font{Bold: true, Size: 9, Family: "Arial", Color: "FFFFFF"},
		Border:    borderAll(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, "", err
	}
	exampleStyle, err := f.NewStyle(&excelize.Style{
		Fill:      solidFill("E8F4FD"),
		Font:      &excelize.Font{Italic: true, Size: 9, Family: "Arial"},
		Border:    borderAll(),
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, "", err
	}
	exampleMoney, err := f.NewStyle(&excelize.Style{
		Fill:         solidFill("E8F4FD"),
		Font:         &excelize.Font{Italic: true, Size: 9, Family: "Arial"},
		Border:       borderAll(),
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		CustomNumFmt: &rp,
	})
	if err != nil {
		return nil, "", err
	}
	examplePct, err := f.NewStyle(&excelize.Style{
		Fill:         solidFill("E8F4FD"),
		Font:         &excelize.Font{Italic: true, Size: 9, Family: "Arial"},
		Border:       borderAll(),
		Alignment:    &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		CustomNumFmt: &intPct,
	})
	if err != nil {
		return nil, "", err
	}
	inputStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 9, Family: "Arial"},
		Border:    borderAll(),
		Alignment: &excelize.Alignment{Vertical: "center"},
	})
	if err != nil {
		return nil, "", err
	}
	inputMoney, err := f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Size: 9, Family: "Arial"},
		Border:       borderAll(),
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		CustomNumFmt: &rp,
	})
	if err != nil {
		return nil, "", err
	}
	requiredStyle, err := f.NewStyle(&excelize.Style{
		Fill:      solidFill("FFD7D7"),
		Font:      &excelize.Font{Bold: true, Size: 9, Family: "Arial"},
		Border:    borderAll(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, "", err
	}
	optionalStyle, err := f.NewStyle(&excelize.Style{
		Fill:      solidFill("FFF2CC"),
		Font:      &excelize.Font{Bold: true, Size: 9, Family: "Arial"},
		Border:    borderAll(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, "", err
	}
	guideStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 9, Family: "Arial"},
		Border:    borderAll(),
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, "", err
	}

	// Sheet 1: Template
	tpl := "Template"
	f.SetSheetName("Sheet1", tpl)
	for i, w := range templateWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(tpl, col, col, w)
	}

	f.SetCellValue(tpl, "A1", fmt.Sprintf("TEMPLATE IMPORT PAKET PEKERJAAN — TAHUN %d", targetTahun))
	f.MergeCell(tpl, "A1", cell(templateCols, 1))
	f.SetCellStyle(tpl, "A1", cell(templateCols, 1), titleStyle)
	f.SetRowHeight(tpl, 1, 28)

	f.SetSheetRow(tpl, "A3", &templateHeaders)
	f.SetCellStyle(tpl, "A3", cell(templateCols, 3), headerStyle)
	f.SetRowHeight(tpl, 3, 30)

	example := []interface{}{
		"Pembangunan SPAM Desa Jubellor Kec. Sugio",
		"DBMCKTR",
		"1.03.03.2.01.0028",
		"Pembangunan Sistem Penyediaan Air Minum (SPAM) Jaringan Perpipaan",
		"KONSTRUKSI",
		targetTahun,
		300000000, 300000000, 0,
		"CV Contoh", "", "",
		"2026-01-01", "2026-12-31",
		0, "APBD", "Kec. Sugio", "",
	}
	f.SetSheetRow(tpl, "A4", &example)
	f.SetCellStyle(tpl, "A4", cell(templateCols, 4), exampleStyle)
	f.SetCellStyle(tpl, cell(7, 4), cell(9, 4), exampleMoney)
	f.SetCellStyle(tpl, cell(15, 4), cell(15, 4), examplePct)
	f.SetRowHeight(tpl, 4, 20)

	// Fifty pre-bordered input rows below the example
	for row := 5; row < 55; row++ {
		f.SetCellStyle(tpl, cell(1, row), cell(templateCols, row), inputStyle)
		f.SetCellStyle(tpl, cell(7, row), cell(9, row), inputMoney)
		f.SetRowHeight(tpl, row, 18)
	}

	// Sheet 2: Panduan
	guide := "Panduan"
	if _, err := f.NewSheet(guide); err != nil {
		return nil, "", err
	}
	for i, w := range []float64{22, 55, 10, 45} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(guide, col, col, w)
	}

	f.SetCellValue(guide, "A1", "PANDUAN PENGISIAN TEMPLATE IMPORT PAKET PEKERJAAN")
	f.MergeCell(guide, "A1", "D1")
	f.SetCellStyle(guide, "A1", "D1", titleStyle)
	f.SetRowHeight(guide, 1, 28)

	guideHeader := []interface{}{"NAMA KOLOM", "KETERANGAN", "WAJIB", "CONTOH NILAI"}
	f.SetSheetRow(guide, "A3", &guideHeader)
	f.SetCellStyle(guide, "A3", "D3", headerStyle)
	f.SetRowHeight(guide, 3, 22)

	r := 4
	for _, g := range guideRows {
		wajib := "Tidak"
		if g.wajib {
			wajib = "Ya"
		}
		row := []interface{}{g.kolom, g.keterangan, wajib, g.contoh}
		f.SetSheetRow(guide, cell(1, r), &row)
		f.SetCellStyle(guide, cell(1, r), cell(4, r), guideStyle)
		if g.wajib {
			f.SetCellStyle(guide, cell(3, r), cell(3, r), requiredStyle)
		} else {
			f.SetCellStyle(guide, cell(3, r), cell(3, r), optionalStyle)
		}
		f.SetRowHeight(guide, r, 20)
		r++
	}

	r++
	f.SetCellValue(guide, cell(1, r), "  Merah = Wajib diisi")
	f.SetCellStyle(guide, cell(1, r), cell(1, r), requiredStyle)
	r++
	f.SetCellValue(guide, cell(1, r), "  Kuning = Opsional")
	f.SetCellStyle(guide, cell(1, r), cell(1, r), optionalStyle)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("template_import_paket_%d.xlsx", targetTahun), nil
}
