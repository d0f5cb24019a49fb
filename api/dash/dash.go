package dash

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SimonPaket/api"
	"SimonPaket/api/constants"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func targetYear(r *http.Request) int {
	if v := r.URL.Query().Get("tahun"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return time.Now().Year()
}

// GetStats aggregates the year's headline numbers: counts per kategori,
// contract value versus realization, average physical progress and status
// breakdown.
func GetStats(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tahun := targetYear(r)

		kategoriCounts := map[string]int{}
		rows, err := pool.Query(ctx,
			`SELECT kategori, COUNT(*) FROM paket WHERE tahun = $1 GROUP BY kategori`, tahun)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		for rows.Next() {
			var kategori string
			var count int
			if err := rows.Scan(&kategori, &count); err != nil {
				rows.Close()
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			kategoriCounts[kategori] = count
		}
		rows.Close()

		var totalNilai, totalRealisasi decimal.Decimal
		var avgProgres float64
		err = pool.QueryRow(ctx, `
			SELECT COALESCE(SUM(nilai), 0), COALESCE(SUM(nilai_realisasi), 0), COALESCE(AVG(progres), 0)
			FROM paket WHERE tahun = $1`, tahun,
		).Scan(&totalNilai, &totalRealisasi, &avgProgres)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		statusCounts := map[string]int{}
		srows, err := pool.Query(ctx,
			`SELECT status, COUNT(*) FROM paket WHERE tahun = $1 GROUP BY status`, tahun)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		for srows.Next() {
			var status string
			var count int
			if err := srows.Scan(&status, &count); err != nil {
				srows.Close()
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			statusCounts[strings.ToLower(status)] = count
		}
		srows.Close()

		persentase := "0"
		if totalNilai.IsPositive() {
			persentase = totalRealisasi.Div(totalNilai).Mul(decimal.NewFromInt(100)).StringFixed(2)
		}

		konstruksi := kategoriCounts["KONSTRUKSI"]
		konsultansi := kategoriCounts["KONSULTANSI"]
		barang := kategoriCounts["BARANG"]
		jasaLainnya := kategoriCounts["JASA_LAINNYA"]

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"tahun": tahun,
			"kategori": map[string]interface{}{
				"konstruksi":  konstruksi,
				"konsultansi": konsultansi,
				"barang":      barang,
				"jasaLainnya": jasaLainnya,
				"total":       konstruksi + konsultansi + barang + jasaLainnya,
			},
			"nilai": map[string]interface{}{
				"total":      totalNilai,
				"realisasi":  totalRealisasi,
				"persentase": persentase,
			},
			"progres": map[string]interface{}{
				"average": fmt.Sprintf("%.2f", avgProgres),
			},
			"status": statusCounts,
		})
	}
}

// GetChartData returns the dashboard chart series: per-month activity,
// per-kategori sums and the ten largest units by contract value.
func GetChartData(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tahun := targetYear(r)

		type monthPoint struct {
			Month          int             `json:"month"`
			Count          int             `json:"count"`
			TotalRealisasi decimal.Decimal `json:"totalRealisasi"`
			AvgProgres     float64         `json:"avgProgres"`
		}
		monthly := []monthPoint{}
		mrows, err := pool.Query(ctx, `
			SELECT EXTRACT(MONTH FROM updated_at)::int, COUNT(*),
			       COALESCE(SUM(nilai_realisasi), 0), COALESCE(AVG(progres), 0)
			FROM paket WHERE tahun = $1
			GROUP BY 1 ORDER BY 1`, tahun)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		for mrows.Next() {
			var m monthPoint
			if err := mrows.Scan(&m.Month, &m.Count, &m.TotalRealisasi, &m.AvgProgres); err != nil {
				mrows.Close()
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			monthly = append(monthly, m)
		}
		mrows.Close()

		type categoryPoint struct {
			Kategori       string          `json:"kategori"`
			Count          int             `json:"count"`
			TotalNilai     decimal.Decimal `json:"totalNilai"`
			TotalRealisasi decimal.Decimal `json:"totalRealisasi"`
		}
		category := []categoryPoint{}
		crows, err := pool.Query(ctx, `
			SELECT kategori, COUNT(*), COALESCE(SUM(nilai), 0), COALESCE(SUM(nilai_realisasi), 0)
			FROM paket WHERE tahun = $1
			GROUP BY kategori`, tahun)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		for crows.Next() {
			var c categoryPoint
			if err := crows.Scan(&c.Kategori, &c.Count, &c.TotalNilai, &c.TotalRealisasi); err != nil {
				crows.Close()
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			category = append(category, c)
		}
		crows.Close()

		type opdPoint struct {
			OpdID          string          `json:"opdId"`
			OpdCode        string          `json:"opdCode"`
			OpdName        string          `json:"opdName"`
			Count          int             `json:"count"`
			TotalNilai     decimal.Decimal `json:"totalNilai"`
			TotalRealisasi decimal.Decimal `json:"totalRealisasi"`
		}
		byOpd := []opdPoint{}
		orows, err := pool.Query(ctx, `
			SELECT p.opd_id, COALESCE(o.code, ''), COALESCE(o.name, ''), COUNT(*),
			       COALESCE(SUM(p.nilai), 0), COALESCE(SUM(p.nilai_realisasi), 0)
			FROM paket p
			LEFT JOIN opd o ON o.id = p.opd_id
			WHERE p.tahun = $1
			GROUP BY p.opd_id, o.code, o.name
			ORDER BY SUM(p.nilai) DESC
			LIMIT 10`, tahun)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		for orows.Next() {
			var o opdPoint
			if err := orows.Scan(&o.OpdID, &o.OpdCode, &o.OpdName, &o.Count, &o.TotalNilai, &o.TotalRealisasi); err != nil {
				orows.Close()
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			byOpd = append(byOpd, o)
		}
		orows.Close()

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"monthly":  monthly,
			"category": category,
			"opd":      byOpd,
		})
	}
}

// GetRecentUpdates lists the most recently touched pakets.
func GetRecentUpdates(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		type recent struct {
			ID        string          `json:"id"`
			Code      string          `json:"code"`
			Name      string          `json:"name"`
			Status    string          `json:"status"`
			Progres   float64         `json:"progres"`
			Nilai     decimal.Decimal `json:"nilai"`
			OpdCode   string          `json:"opdCode"`
			OpdName   string          `json:"opdName"`
			UpdatedAt time.Time       `json:"updatedAt"`
		}
		items := []recent{}
		rows, err := pool.Query(ctx, `
			SELECT p.id, p.code, p.name, p.status, p.progres, p.nilai,
			       COALESCE(o.code, ''), COALESCE(o.name, ''), p.updated_at
			FROM paket p
			LEFT JOIN opd o ON o.id = p.opd_id
			ORDER BY p.updated_at DESC
			LIMIT $1`, limit)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		defer rows.Close()
		for rows.Next() {
			var it recent
			if err := rows.Scan(&it.ID, &it.Code, &it.Name, &it.Status, &it.Progres,
				&it.Nilai, &it.OpdCode, &it.OpdName, &it.UpdatedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			items = append(items, it)
		}
		api.RespondWithPayload(w, true, "", items)
	}
}

// StartDashService mounts the dashboard routes behind session auth.
func StartDashService(pool *pgxpool.Pool, port string) error {
	r := mux.NewRouter()
	r.Use(api.SessionMiddleware())

	r.HandleFunc("/dash/stats", GetStats(pool)).Methods("GET")
	r.HandleFunc("/dash/charts", GetChartData(pool)).Methods("GET")
	r.HandleFunc("/dash/recent", GetRecentUpdates(pool)).Methods("GET")

	api.LogInfo("Dashboard service listening on :%s", port)
	return http.ListenAndServe(":"+port, r)
}
