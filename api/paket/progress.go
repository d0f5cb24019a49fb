package paket

import (
	"context"
	"encoding/json"
	"net/http"

	"SimonPaket/api"
	"SimonPaket/api/constants"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func listProgress(ctx context.Context, pool *pgxpool.Pool, paketID string, limit int) ([]ProgressEvent, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, paket_id, progres, nilai_realisasi, COALESCE(keterangan, ''), tanggal
		FROM paket_progress
		WHERE paket_id = $1
		ORDER BY tanggal DESC
		LIMIT $2`, paketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []ProgressEvent{}
	for rows.Next() {
		var ev ProgressEvent
		if err := rows.Scan(&ev.ID, &ev.PaketID, &ev.Progres, &ev.NilaiRealisasi, &ev.Keterangan, &ev.Tanggal); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// UpdateProgress appends a progress event and rolls the latest figures up
// onto the paket itself.
func UpdateProgress(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		var req struct {
			Progres        decimal.Decimal `json:"progres"`
			NilaiRealisasi decimal.Decimal `json:"nilaiRealisasi"`
			Keterangan     string          `json:"keterangan"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		if _, ok := fetchPaket(w, r, pool, id); !ok {
			return
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTxStartFailed+err.Error())
			return
		}
		defer tx.Rollback(ctx)

		progres := req.Progres.InexactFloat64()
		if _, err := tx.Exec(ctx, `
			INSERT INTO paket_progress (paket_id, progres, nilai_realisasi, keterangan)
			VALUES ($1, $2, $3, $4)`,
			id, progres, req.NilaiRealisasi, req.Keterangan); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		if _, err := tx.Exec(ctx, `
			UPDATE paket SET progres = $1, nilai_realisasi = $2, updated_at = NOW()
			WHERE id = $3`,
			progres, req.NilaiRealisasi, id); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTxCommitFailed+err.Error())
			return
		}

		p, err := scanPaket(pool.QueryRow(ctx, paketSelect+" WHERE p.id = $1", id))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		history, err := listProgress(ctx, pool, id, 10)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"paket":    p,
			"progress": history,
		})
	}
}
