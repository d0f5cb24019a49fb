package paket

import (
	"time"

	"github.com/shopspring/decimal"
)

// Paket is one procurement package row.
type Paket struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Kegiatan       string          `json:"kegiatan"`
	KodeRekening   string          `json:"kodeRekening,omitempty"`
	Kategori       string          `json:"kategori"`
	Status         string          `json:"status"`
	OpdID          string          `json:"opdId"`
	OpdCode        string          `json:"opdCode,omitempty"`
	OpdName        string          `json:"opdName,omitempty"`
	Pagu           decimal.Decimal `json:"pagu"`
	Nilai          decimal.Decimal `json:"nilai"`
	NilaiRealisasi decimal.Decimal `json:"nilaiRealisasi"`
	Progres        float64         `json:"progres"`
	Tahun          int             `json:"tahun"`
	TanggalMulai   *time.Time      `json:"tanggalMulai,omitempty"`
	TanggalSelesai *time.Time      `json:"tanggalSelesai,omitempty"`
	Pelaksana      string          `json:"pelaksana,omitempty"`
	SumberDana     string          `json:"sumberDana,omitempty"`
	Lokasi         string          `json:"lokasi,omitempty"`
	Keterangan     string          `json:"keterangan,omitempty"`
	NomorKontrak   string          `json:"nomorKontrak,omitempty"`
	NoSPMK         string          `json:"noSPMK,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ProgressEvent is an immutable progress update appended to a paket.
type ProgressEvent struct {
	ID             string          `json:"id"`
	PaketID        string          `json:"paketId"`
	Progres        float64         `json:"progres"`
	NilaiRealisasi decimal.Decimal `json:"nilaiRealisasi"`
	Keterangan     string          `json:"keterangan,omitempty"`
	Tanggal        time.Time       `json:"tanggal"`
}

// Document is uploaded file metadata attached to a paket.
type Document struct {
	ID                 string    `json:"id"`
	PaketID            string    `json:"paketId"`
	Name               string    `json:"name"`
	Filename           string    `json:"filename"`
	Filepath           string    `json:"filepath"`
	Mimetype           string    `json:"mimetype"`
	Filesize           int64     `json:"filesize"`
	Category           string    `json:"category,omitempty"`
	ProgressPercentage *int      `json:"progressPercentage,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// paketDraft is a normalized import row before a code is assigned.
type paketDraft struct {
	Name           string
	Kegiatan       string
	KodeRekening   string
	Kategori       string
	OpdID          string
	Pagu           decimal.Decimal
	Nilai          decimal.Decimal
	NilaiRealisasi decimal.Decimal
	Progres        float64
	Tahun          int
	TanggalMulai   *time.Time
	TanggalSelesai *time.Time
	Pelaksana      string
	SumberDana     string
	Lokasi         string
	Keterangan     string
	NomorKontrak   string
	NoSPMK         string
}

// ImportOutcome is the per-run import result returned to the caller.
type ImportOutcome struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// ReportFilter narrows the export query. CallerRole/CallerOpdID carry the
// session scope: an OPD-role caller is always pinned to their own unit.
type ReportFilter struct {
	Tahun       int
	Kategori    string
	Status      string
	OpdID       string
	CallerRole  string
	CallerOpdID string
}
