package opd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"SimonPaket/api"
	"SimonPaket/api/audit"
	"SimonPaket/api/constants"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Opd is one organizational unit (Organisasi Perangkat Daerah).
type Opd struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Kepala     string `json:"kepala,omitempty"`
	Contact    string `json:"contact,omitempty"`
	Address    string `json:"address,omitempty"`
	IsActive   bool   `json:"isActive"`
	PaketCount int    `json:"paketCount"`
	UserCount  int    `json:"userCount"`
}

const opdSelect = `
	SELECT o.id, o.code, o.name,
	       COALESCE(o.kepala, ''), COALESCE(o.contact, ''), COALESCE(o.address, ''),
	       o.is_active,
	       (SELECT COUNT(*) FROM paket p WHERE p.opd_id = o.id),
	       (SELECT COUNT(*) FROM users u WHERE u.opd_id = o.id)
	FROM opd o`

func scanOpd(row pgx.Row) (Opd, error) {
	var o Opd
	err := row.Scan(&o.ID, &o.Code, &o.Name, &o.Kepala, &o.Contact, &o.Address,
		&o.IsActive, &o.PaketCount, &o.UserCount)
	return o, err
}

// GetAllOpd lists units with their paket and user counts.
func GetAllOpd(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		var conds []string
		var args []interface{}
		if search := strings.TrimSpace(q.Get("search")); search != "" {
			args = append(args, "%"+search+"%")
			conds = append(conds, fmt.Sprintf("(o.name ILIKE $%d OR o.code ILIKE $%d)", len(args), len(args)))
		}
		if v := q.Get("isActive"); v != "" {
			args = append(args, v == "true")
			conds = append(conds, fmt.Sprintf("o.is_active = $%d", len(args)))
		}

		query := opdSelect
		for i, c := range conds {
			if i == 0 {
				query += " WHERE " + c
			} else {
				query += " AND " + c
			}
		}
		query += " ORDER BY o.name ASC"

		rows, err := pool.Query(ctx, query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		defer rows.Close()

		opds := []Opd{}
		for rows.Next() {
			o, err := scanOpd(rows)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			opds = append(opds, o)
		}
		api.RespondWithPayload(w, true, "", opds)
	}
}

// GetOpdByID returns one unit with its users and recent pakets.
func GetOpdByID(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		o, err := scanOpd(pool.QueryRow(ctx, opdSelect+" WHERE o.id = $1", id))
		if errors.Is(err, pgx.ErrNoRows) {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrOpdNotFound)
			return
		}
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		type opdUser struct {
			ID       string `json:"id"`
			Email    string `json:"email"`
			Name     string `json:"name"`
			Role     string `json:"role"`
			IsActive bool   `json:"isActive"`
		}
		users := []opdUser{}
		urows, err := pool.Query(ctx,
			`SELECT id, email, name, role, is_active FROM users WHERE opd_id = $1 ORDER BY name ASC`, id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		defer urows.Close()
		for urows.Next() {
			var u opdUser
			if err := urows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.IsActive); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			users = append(users, u)
		}

		type recentPaket struct {
			ID      string  `json:"id"`
			Code    string  `json:"code"`
			Name    string  `json:"name"`
			Status  string  `json:"status"`
			Tahun   int     `json:"tahun"`
			Progres float64 `json:"progres"`
		}
		pakets := []recentPaket{}
		prows, err := pool.Query(ctx, `
			SELECT id, code, name, status, tahun, progres
			FROM paket WHERE opd_id = $1
			ORDER BY updated_at DESC LIMIT 10`, id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		defer prows.Close()
		for prows.Next() {
			var p recentPaket
			if err := prows.Scan(&p.ID, &p.Code, &p.Name, &p.Status, &p.Tahun, &p.Progres); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			pakets = append(pakets, p)
		}

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"opd":    o,
			"users":  users,
			"pakets": pakets,
		})
	}
}

type opdRequest struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Kepala  string `json:"kepala"`
	Contact string `json:"contact"`
	Address string `json:"address"`
}

// CreateOpd registers a new unit. Admin only.
func CreateOpd(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req opdRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO opd (code, name, kepala, contact, address)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			strings.ToUpper(strings.TrimSpace(req.Code)), req.Name, req.Kepala, req.Contact, req.Address,
		).Scan(&id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		audit.Log(pool, audit.Entry{
			UserID:   api.GetUserIDFromCtx(ctx),
			Action:   "CREATE",
			Entity:   "OPD",
			EntityID: id,
			Details:  map[string]interface{}{"name": req.Name, "code": req.Code},
		})

		o, err := scanOpd(pool.QueryRow(ctx, opdSelect+" WHERE o.id = $1", id))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", o)
	}
}

// UpdateOpd edits a unit's details. Admin only.
func UpdateOpd(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		var req opdRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		tag, err := pool.Exec(ctx, `
			UPDATE opd SET
				code = COALESCE(NULLIF($1, ''), code),
				name = COALESCE(NULLIF($2, ''), name),
				kepala = COALESCE(NULLIF($3, ''), kepala),
				contact = COALESCE(NULLIF($4, ''), contact),
				address = COALESCE(NULLIF($5, ''), address)
			WHERE id = $6`,
			strings.ToUpper(strings.TrimSpace(req.Code)), req.Name, req.Kepala, req.Contact, req.Address, id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrOpdNotFound)
			return
		}

		audit.Log(pool, audit.Entry{
			UserID:   api.GetUserIDFromCtx(ctx),
			Action:   "UPDATE",
			Entity:   "OPD",
			EntityID: id,
			Details:  map[string]interface{}{"name": req.Name, "code": req.Code},
		})

		o, err := scanOpd(pool.QueryRow(ctx, opdSelect+" WHERE o.id = $1", id))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", o)
	}
}

// DeleteOpd removes a unit, refused while pakets still reference it.
func DeleteOpd(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		var paketCount int
		if err := pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM paket WHERE opd_id = $1`, id).Scan(&paketCount); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		if paketCount > 0 {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrOpdHasPakets)
			return
		}

		tag, err := pool.Exec(ctx, `DELETE FROM opd WHERE id = $1`, id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrOpdNotFound)
			return
		}

		audit.Log(pool, audit.Entry{
			UserID:   api.GetUserIDFromCtx(ctx),
			Action:   "DELETE",
			Entity:   "OPD",
			EntityID: id,
		})
		api.RespondWithResult(w, true, "")
	}
}

// ToggleOpdStatus flips a unit between active and inactive.
func ToggleOpdStatus(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		var isActive bool
		err := pool.QueryRow(ctx,
			`UPDATE opd SET is_active = NOT is_active WHERE id = $1 RETURNING is_active`,
			id).Scan(&isActive)
		if errors.Is(err, pgx.ErrNoRows) {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrOpdNotFound)
			return
		}
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		audit.Log(pool, audit.Entry{
			UserID:   api.GetUserIDFromCtx(ctx),
			Action:   "UPDATE",
			Entity:   "OPD",
			EntityID: id,
			Details:  map[string]interface{}{"action": "toggle_status", "isActive": isActive},
		})

		o, err := scanOpd(pool.QueryRow(ctx, opdSelect+" WHERE o.id = $1", id))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", o)
	}
}

// StartOpdService mounts the OPD routes behind session auth. Mutations are
// admin only; reads are open to every authenticated role.
func StartOpdService(pool *pgxpool.Pool, port string) error {
	r := mux.NewRouter()
	r.Use(api.SessionMiddleware())

	admin := api.RequireRole(constants.RoleAdmin)

	r.HandleFunc("/opd", GetAllOpd(pool)).Methods("GET")
	r.HandleFunc("/opd/{id}", GetOpdByID(pool)).Methods("GET")
	r.Handle("/opd", admin(CreateOpd(pool))).Methods("POST")
	r.Handle("/opd/{id}", admin(UpdateOpd(pool))).Methods("PUT")
	r.Handle("/opd/{id}", admin(DeleteOpd(pool))).Methods("DELETE")
	r.Handle("/opd/{id}/toggle", admin(ToggleOpdStatus(pool))).Methods("PATCH", "PUT")

	api.LogInfo("OPD service listening on :%s", port)
	return http.ListenAndServe(":"+port, r)
}
