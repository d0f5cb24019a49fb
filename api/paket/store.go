package paket

import (
	"context"
	"errors"
	"fmt"

	"SimonPaket/api/audit"
	"SimonPaket/api/constants"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the pgx-backed persistence layer shared by the import and report
// cores.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) OpdRefs(ctx context.Context) ([]OpdRef, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, code FROM opd WHERE is_active = true`)
	if err != nil {
		return nil, errors.New(constants.ErrQueryFailed + err.Error())
	}
	defer rows.Close()

	var refs []OpdRef
	for rows.Next() {
		var ref OpdRef
		if err := rows.Scan(&ref.ID, &ref.Code); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *Store) LatestPaketCode(ctx context.Context) (string, error) {
	var code string
	err := s.pool.QueryRow(ctx,
		`SELECT code FROM paket ORDER BY created_at DESC LIMIT 1`).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.New(constants.ErrQueryFailed + err.Error())
	}
	return code, nil
}

// UpsertPaketByCode keys on the unique code column. A re-imported workbook
// merges into the existing rows instead of duplicating them.
func (s *Store) UpsertPaketByCode(ctx context.Context, code string, d paketDraft) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO paket (
			code, name, kegiatan, kode_rekening, kategori, opd_id,
			pagu, nilai, nilai_realisasi, progres, tahun,
			tanggal_mulai, tanggal_selesai, pelaksana, sumber_dana,
			lokasi, keterangan, nomor_kontrak, no_spmk
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			kegiatan = EXCLUDED.kegiatan,
			kode_rekening = EXCLUDED.kode_rekening,
			kategori = EXCLUDED.kategori,
			opd_id = EXCLUDED.opd_id,
			pagu = EXCLUDED.pagu,
			nilai = EXCLUDED.nilai,
			nilai_realisasi = EXCLUDED.nilai_realisasi,
			progres = EXCLUDED.progres,
			tahun = EXCLUDED.tahun,
			tanggal_mulai = EXCLUDED.tanggal_mulai,
			tanggal_selesai = EXCLUDED.tanggal_selesai,
			pelaksana = EXCLUDED.pelaksana,
			sumber_dana = EXCLUDED.sumber_dana,
			lokasi = EXCLUDED.lokasi,
			keterangan = EXCLUDED.keterangan,
			nomor_kontrak = EXCLUDED.nomor_kontrak,
			no_spmk = EXCLUDED.no_spmk,
			updated_at = NOW()`,
		code, d.Name, d.Kegiatan, d.KodeRekening, d.Kategori, d.OpdID,
		d.Pagu, d.Nilai, d.NilaiRealisasi, d.Progres, d.Tahun,
		d.TanggalMulai, d.TanggalSelesai, d.Pelaksana, d.SumberDana,
		d.Lokasi, d.Keterangan, d.NomorKontrak, d.NoSPMK,
	)
	return err
}

func (s *Store) AppendAudit(e audit.Entry) {
	audit.Log(s.pool, e)
}

const paketSelect = `
	SELECT p.id, p.code, p.name, p.kegiatan,
	       COALESCE(p.kode_rekening, ''), p.kategori, p.status,
	       p.opd_id, COALESCE(o.code, ''), COALESCE(o.name, ''),
	       p.pagu, p.nilai, p.nilai_realisasi, p.progres, p.tahun,
	       p.tanggal_mulai, p.tanggal_selesai,
	       COALESCE(p.pelaksana, ''), COALESCE(p.sumber_dana, ''),
	       COALESCE(p.lokasi, ''), COALESCE(p.keterangan, ''),
	       COALESCE(p.nomor_kontrak, ''), COALESCE(p.no_spmk, ''),
	       p.created_at, p.updated_at
	FROM paket p
	LEFT JOIN opd o ON o.id = p.opd_id`

func scanPaket(row pgx.Row) (Paket, error) {
	var p Paket
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Kegiatan,
		&p.KodeRekening, &p.Kategori, &p.Status,
		&p.OpdID, &p.OpdCode, &p.OpdName,
		&p.Pagu, &p.Nilai, &p.NilaiRealisasi, &p.Progres, &p.Tahun,
		&p.TanggalMulai, &p.TanggalSelesai,
		&p.Pelaksana, &p.SumberDana,
		&p.Lokasi, &p.Keterangan,
		&p.NomorKontrak, &p.NoSPMK,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// FindPaket returns the filtered report rows ordered by unit name, kode
// rekening, then creation time so the grouping pass sees a stable sequence.
func (s *Store) FindPaket(ctx context.Context, f ReportFilter) ([]Paket, error) {
	query := paketSelect
	var conds []string
	var args []interface{}

	add := func(expr string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}
	if f.Kategori != "" {
		add("p.kategori = $%d", f.Kategori)
	}
	if f.Status != "" {
		add("p.status = $%d", f.Status)
	}
	if f.Tahun != 0 {
		add("p.tahun = $%d", f.Tahun)
	}
	opdID := f.OpdID
	if f.CallerRole == constants.RoleOPD && f.CallerOpdID != "" {
		opdID = f.CallerOpdID
	}
	if opdID != "" {
		add("p.opd_id = $%d", opdID)
	}

	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY o.name ASC, p.kode_rekening ASC NULLS FIRST, p.created_at ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.New(constants.ErrQueryFailed + err.Error())
	}
	defer rows.Close()

	var pakets []Paket
	for rows.Next() {
		p, err := scanPaket(rows)
		if err != nil {
			return nil, err
		}
		pakets = append(pakets, p)
	}
	return pakets, rows.Err()
}
