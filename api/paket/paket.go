package paket

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SimonPaket/api"
	"SimonPaket/api/audit"
	"SimonPaket/api/constants"
	"SimonPaket/api/utils"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// parseDateField accepts the date formats the frontend sends, nil otherwise.
func parseDateField(s string) *time.Time {
	return parseSheetDate(s)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func isValidStatus(s string) bool {
	for _, v := range constants.ValidStatus {
		if s == v {
			return true
		}
	}
	return false
}

// listFilters builds the shared WHERE clause for the list and aggregate
// queries. All referenced columns live on paket (aliased p).
func listFilters(r *http.Request, callerRole, callerOpdID string) (string, []interface{}) {
	q := r.URL.Query()
	var conds []string
	var args []interface{}

	add := func(expr string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}
	if search := strings.TrimSpace(q.Get("search")); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(p.name ILIKE $%d OR p.code ILIKE $%d OR p.kegiatan ILIKE $%d OR p.lokasi ILIKE $%d)",
			n, n, n, n))
	}
	if v := q.Get("kategori"); v != "" {
		add("p.kategori = $%d", v)
	}
	if v := q.Get("status"); v != "" {
		add("p.status = $%d", v)
	}
	if v := q.Get("tahun"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			add("p.tahun = $%d", n)
		}
	}
	opdID := q.Get("opdId")
	if callerRole == constants.RoleOPD && callerOpdID != "" {
		opdID = callerOpdID
	}
	if opdID != "" {
		add("p.opd_id = $%d", opdID)
	}

	where := ""
	for i, c := range conds {
		if i == 0 {
			where = " WHERE " + c
		} else {
			where += " AND " + c
		}
	}
	return where, args
}

// GetAllPaket lists pakets with search, filters, pagination and running
// totals over the filtered set.
func GetAllPaket(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		pagination, err := utils.ExtractPagination(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		where, args := listFilters(r, api.GetRoleFromCtx(ctx), api.GetOpdIDFromCtx(ctx))

		var (
			total          int
			totalPagu      decimal.Decimal
			totalNilai     decimal.Decimal
			totalRealisasi decimal.Decimal
			avgProgres     float64
		)
		err = pool.QueryRow(ctx, `
			SELECT COUNT(*),
			       COALESCE(SUM(p.pagu), 0),
			       COALESCE(SUM(p.nilai), 0),
			       COALESCE(SUM(p.nilai_realisasi), 0),
			       COALESCE(AVG(p.progres), 0)
			FROM paket p`+where, args...,
		).Scan(&total, &totalPagu, &totalNilai, &totalRealisasi, &avgProgres)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		pagination.SetPaginationStats(total)

		listArgs := append(args, pagination.Limit, pagination.Offset)
		query := paketSelect + where + fmt.Sprintf(
			" ORDER BY p.updated_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

		rows, err := pool.Query(ctx, query, listArgs...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		defer rows.Close()

		pakets := []Paket{}
		for rows.Next() {
			p, err := scanPaket(rows)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			pakets = append(pakets, p)
		}

		avgKeuangan := 0.0
		if totalNilai.IsPositive() {
			avgKeuangan, _ = totalRealisasi.Div(totalNilai).Mul(decimal.NewFromInt(100)).Float64()
		}

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"data":       pakets,
			"pagination": pagination,
			"totals": map[string]interface{}{
				"pagu":           totalPagu,
				"nilai":          totalNilai,
				"sisa":           totalPagu.Sub(totalNilai),
				"nilaiRealisasi": totalRealisasi,
				"avgFisik":       round1(avgProgres),
				"avgKeuangan":    round1(avgKeuangan),
				"count":          total,
			},
		})
	}
}

// fetchPaket loads one paket row with its unit, enforcing the caller's OPD
// scope. Writes the error response itself and returns false on failure.
func fetchPaket(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool, id string) (Paket, bool) {
	ctx := r.Context()
	p, err := scanPaket(pool.QueryRow(ctx, paketSelect+" WHERE p.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		api.RespondWithError(w, http.StatusNotFound, constants.ErrPaketNotFound)
		return Paket{}, false
	}
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
		return Paket{}, false
	}
	if api.GetRoleFromCtx(ctx) == constants.RoleOPD && p.OpdID != api.GetOpdIDFromCtx(ctx) {
		api.RespondWithError(w, http.StatusForbidden, constants.ErrAccessDenied)
		return Paket{}, false
	}
	return p, true
}

// GetPaketByID returns one paket with its recent progress history and
// documents.
func GetPaketByID(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		p, ok := fetchPaket(w, r, pool, id)
		if !ok {
			return
		}

		progress, err := listProgress(ctx, pool, id, 20)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		documents, err := listDocuments(ctx, pool, id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"paket":     p,
			"progress":  progress,
			"documents": documents,
		})
	}
}

type paketRequest struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Kegiatan       string          `json:"kegiatan"`
	KodeRekening   string          `json:"kodeRekening"`
	Kategori       string          `json:"kategori"`
	OpdID          string          `json:"opdId"`
	Pagu           decimal.Decimal `json:"pagu"`
	Nilai          decimal.Decimal `json:"nilai"`
	NilaiRealisasi decimal.Decimal `json:"nilaiRealisasi"`
	Progres        decimal.Decimal `json:"progres"`
	Tahun          int             `json:"tahun"`
	TanggalMulai   string          `json:"tanggalMulai"`
	TanggalSelesai string          `json:"tanggalSelesai"`
	Pelaksana      string          `json:"pelaksana"`
	SumberDana     string          `json:"sumberDana"`
	Lokasi         string          `json:"lokasi"`
	Keterangan     string          `json:"keterangan"`
	NomorKontrak   string          `json:"nomorKontrak"`
	NoSPMK         string          `json:"noSPMK"`
}

// CreatePaket inserts a new paket. An OPD caller always creates under their
// own unit; a blank code is auto-generated.
func CreatePaket(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req paketRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		opdID := req.OpdID
		if api.GetRoleFromCtx(ctx) == constants.RoleOPD {
			opdID = api.GetOpdIDFromCtx(ctx)
		}
		if opdID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrOpdRequired)
			return
		}

		tahun := req.Tahun
		if tahun == 0 {
			tahun = time.Now().Year()
		}
		code := strings.TrimSpace(req.Code)
		if code == "" {
			code = fmt.Sprintf("PKT-%d-%d", tahun, time.Now().UnixMilli())
		}

		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO paket (
				code, name, kegiatan, kode_rekening, kategori, opd_id,
				pagu, nilai, nilai_realisasi, progres, tahun,
				tanggal_mulai, tanggal_selesai, pelaksana, sumber_dana,
				lokasi, keterangan, nomor_kontrak, no_spmk
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
			RETURNING id`,
			code, req.Name, req.Kegiatan, req.KodeRekening, req.Kategori, opdID,
			req.Pagu, req.Nilai, req.NilaiRealisasi, req.Progres.InexactFloat64(), tahun,
			parseDateField(req.TanggalMulai), parseDateField(req.TanggalSelesai),
			req.Pelaksana, orDefault(req.SumberDana, constants.DefaultSumberDana),
			req.Lokasi, req.Keterangan, req.NomorKontrak, req.NoSPMK,
		).Scan(&id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		audit.Log(pool, audit.Entry{
			UserID:   api.GetUserIDFromCtx(ctx),
			Action:   "CREATE",
			Entity:   "Paket",
			EntityID: id,
			Details:  map[string]interface{}{"name": req.Name, "code": code},
		})

		p, err := scanPaket(pool.QueryRow(ctx, paketSelect+" WHERE p.id = $1", id))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", p)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// UpdatePaket applies a partial update to the provided fields only.
func UpdatePaket(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		var fields map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		if _, ok := fetchPaket(w, r, pool, id); !ok {
			return
		}

		// json field -> column plus how the raw value is coerced
		type col struct {
			name string
			kind string // text | money | float | int | date
		}
		mapping := map[string]col{
			"name":           {"name", "text"},
			"kegiatan":       {"kegiatan", "text"},
			"kodeRekening":   {"kode_rekening", "text"},
			"kategori":       {"kategori", "text"},
			"opdId":          {"opd_id", "text"},
			"pagu":           {"pagu", "money"},
			"nilai":          {"nilai", "money"},
			"nilaiRealisasi": {"nilai_realisasi", "money"},
			"progres":        {"progres", "float"},
			"tahun":          {"tahun", "int"},
			"tanggalMulai":   {"tanggal_mulai", "date"},
			"tanggalSelesai": {"tanggal_selesai", "date"},
			"pelaksana":      {"pelaksana", "text"},
			"sumberDana":     {"sumber_dana", "text"},
			"lokasi":         {"lokasi", "text"},
			"keterangan":     {"keterangan", "text"},
			"nomorKontrak":   {"nomor_kontrak", "text"},
			"noSPMK":         {"no_spmk", "text"},
		}

		var sets []string
		var args []interface{}
		details := map[string]interface{}{}
		for key, raw := range fields {
			c, ok := mapping[key]
			if !ok {
				continue
			}
			var val interface{}
			switch c.kind {
			case "text":
				var s string
				if err := json.Unmarshal(raw, &s); err != nil {
					continue
				}
				val = s
				details[key] = s
			case "money":
				var d decimal.Decimal
				if err := json.Unmarshal(raw, &d); err != nil {
					continue
				}
				val = d
				details[key] = d
			case "float":
				var d decimal.Decimal
				if err := json.Unmarshal(raw, &d); err != nil {
					continue
				}
				val = d.InexactFloat64()
				details[key] = val
			case "int":
				var n int
				if err := json.Unmarshal(raw, &n); err != nil {
					continue
				}
				val = n
				details[key] = n
			case "date":
				var s string
				if err := json.Unmarshal(raw, &s); err != nil {
					continue
				}
				val = parseDateField(s)
				details[key] = s
			}
			args = append(args, val)
			sets = append(sets, fmt.Sprintf("%s = $%d", c.name, len(args)))
		}
		if len(sets) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		args = append(args, id)
		query := fmt.Sprintf("UPDATE paket SET %s, updated_at = NOW() WHERE id = $%d",
			strings.Join(sets, ", "), len(args))
		if _, err := pool.Exec(ctx, query, args...); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		audit.Log(pool, audit.Entry{
			UserID:   api.GetUserIDFromCtx(ctx),
			Action:   "UPDATE",
			Entity:   "Paket",
			EntityID: id,
			Details:  details,
		})

		p, err := scanPaket(pool.QueryRow(ctx, paketSelect+" WHERE p.id = $1", id))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", p)
	}
}

// UpdatePaketStatus sets the workflow status of one paket.
func UpdatePaketStatus(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		if !isValidStatus(req.Status) {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidStatus)
			return
		}

		existing, ok := fetchPaket(w, r, pool, id)
		if !ok {
			return
		}

		if _, err := pool.Exec(ctx,
			`UPDATE paket SET status = $1, updated_at = NOW() WHERE id = $2`,
			req.Status, id); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		audit.Log(pool, audit.Entry{
			UserID:   api.GetUserIDFromCtx(ctx),
			Action:   "UPDATE",
			Entity:   "Paket",
			EntityID: id,
			Details: map[string]interface{}{
				"action":    "update_status",
				"oldStatus": existing.Status,
				"newStatus": req.Status,
			},
		})

		existing.Status = req.Status
		api.RespondWithPayload(w, true, "", existing)
	}
}

// DeletePaket removes one paket. Admin only.
func DeletePaket(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		if api.GetRoleFromCtx(ctx) != constants.RoleAdmin {
			api.RespondWithError(w, http.StatusForbidden, constants.ErrOnlyAdminDelete)
			return
		}

		var name string
		err := pool.QueryRow(ctx, `SELECT name FROM paket WHERE id = $1`, id).Scan(&name)
		if errors.Is(err, pgx.ErrNoRows) {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrPaketNotFound)
			return
		}
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		if _, err := pool.Exec(ctx, `DELETE FROM paket WHERE id = $1`, id); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		audit.Log(pool, audit.Entry{
			UserID:   api.GetUserIDFromCtx(ctx),
			Action:   "DELETE",
			Entity:   "Paket",
			EntityID: id,
			Details:  map[string]interface{}{"name": name},
		})
		api.RespondWithResult(w, true, "")
	}
}

// ImportPaket ingests an uploaded workbook (xlsx, xls or csv) as a bulk
// upsert and reports the per-row outcome.
func ImportPaket(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrFailedToParseMultipartForm)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrFileNotFound)
			return
		}
		defer file.Close()

		payload, err := io.ReadAll(file)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		importer := NewImporter(NewStore(pool))
		outcome, err := importer.Run(ctx, payload, header.Filename, api.GetUserIDFromCtx(ctx))
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"message": fmt.Sprintf("Import selesai: %d berhasil, %d gagal", outcome.Success, outcome.Failed),
			"success": outcome.Success,
			"failed":  outcome.Failed,
			"errors":  outcome.Errors,
		})
	}
}

// ExportPaket streams either the filtered report workbook or, with
// template=true, the blank import template.
func ExportPaket(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		tahun := 0
		if v := q.Get("tahun"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				tahun = n
			}
		}

		var payload []byte
		var filename string
		var err error

		if q.Get("template") == "true" {
			target := tahun
			if target == 0 {
				target = time.Now().Year()
			}
			payload, filename, err = BuildImportTemplate(target)
		} else {
			filter := ReportFilter{
				Tahun:       tahun,
				Kategori:    q.Get("kategori"),
				Status:      q.Get("status"),
				OpdID:       q.Get("opdId"),
				CallerRole:  api.GetRoleFromCtx(ctx),
				CallerOpdID: api.GetOpdIDFromCtx(ctx),
			}
			payload, filename, err = BuildLaporan(ctx, NewStore(pool), filter)
			if err == nil {
				audit.Log(pool, audit.Entry{
					UserID:   api.GetUserIDFromCtx(ctx),
					Action:   "EXPORT_PAKET",
					Entity:   "Paket",
					EntityID: "BULK",
					Details:  map[string]interface{}{"tahun": tahun, "filename": filename},
				})
			}
		}
		if errors.Is(err, ErrNoData) {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrNoExportData)
			return
		}
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set(constants.ContentTypeText, constants.ContentTypeXLSX)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}
}

// StartPaketService mounts the paket routes behind session auth.
func StartPaketService(pool *pgxpool.Pool, port string) error {
	r := mux.NewRouter()
	r.Use(api.SessionMiddleware())

	r.HandleFunc("/paket", GetAllPaket(pool)).Methods("GET")
	r.HandleFunc("/paket", CreatePaket(pool)).Methods("POST")
	r.HandleFunc("/paket/import", ImportPaket(pool)).Methods("POST")
	r.HandleFunc("/paket/export", ExportPaket(pool)).Methods("GET")
	r.HandleFunc("/paket/{id}", GetPaketByID(pool)).Methods("GET")
	r.HandleFunc("/paket/{id}", UpdatePaket(pool)).Methods("PUT")
	r.HandleFunc("/paket/{id}", DeletePaket(pool)).Methods("DELETE")
	r.HandleFunc("/paket/{id}/status", UpdatePaketStatus(pool)).Methods("PATCH", "PUT")
	r.HandleFunc("/paket/{id}/progress", UpdateProgress(pool)).Methods("POST")
	r.HandleFunc("/paket/{id}/documents", UploadDocuments(pool)).Methods("POST")
	r.HandleFunc("/paket/{id}/documents/{docId}", DeleteDocument(pool)).Methods("DELETE")

	api.LogInfo("Paket service listening on :%s", port)
	return http.ListenAndServe(":"+port, r)
}
