package uam

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SimonPaket/api"
	"SimonPaket/api/constants"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// User is one account row, password never serialized.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	OpdID     string    `json:"opdId,omitempty"`
	OpdCode   string    `json:"opdCode,omitempty"`
	OpdName   string    `json:"opdName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

const userSelect = `
	SELECT u.id, u.email, u.name, u.role, u.is_active,
	       COALESCE(u.opd_id::text, ''), COALESCE(o.code, ''), COALESCE(o.name, ''),
	       u.created_at
	FROM users u
	LEFT JOIN opd o ON o.id = u.opd_id`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.IsActive,
		&u.OpdID, &u.OpdCode, &u.OpdName, &u.CreatedAt)
	return u, err
}

func writeAudit(db *sql.DB, userID, action, entity, entityID string, details map[string]interface{}) {
	var payload interface{}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			payload = string(b)
		}
	}
	if _, err := db.Exec(
		`INSERT INTO audit_log (user_id, action, entity, entity_id, details) VALUES ($1, $2, $3, $4, $5)`,
		userID, action, entity, entityID, payload); err != nil {
		api.LogError("audit insert failed: %v", err)
	}
}

// GetAllUsers lists accounts, newest first.
func GetAllUsers(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var conds []string
		var args []interface{}

		add := func(expr string, val interface{}) {
			args = append(args, val)
			conds = append(conds, fmt.Sprintf(expr, len(args)))
		}
		if v := q.Get("role"); v != "" {
			add("u.role = $%d", v)
		}
		if v := q.Get("opdId"); v != "" {
			add("u.opd_id = $%d", v)
		}
		if v := q.Get("isActive"); v != "" {
			add("u.is_active = $%d", v == "true")
		}

		query := userSelect
		for i, c := range conds {
			if i == 0 {
				query += " WHERE " + c
			} else {
				query += " AND " + c
			}
		}
		query += " ORDER BY u.created_at DESC"

		rows, err := db.Query(query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		defer rows.Close()

		users := []User{}
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			users = append(users, u)
		}
		api.RespondWithPayload(w, true, "", users)
	}
}

// GetUserByID returns one account.
func GetUserByID(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		u, err := scanUser(db.QueryRow(userSelect+" WHERE u.id = $1", id))
		if errors.Is(err, sql.ErrNoRows) {
			api.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", u)
	}
}

type userRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	OpdID    string `json:"opdId"`
}

// CreateUser registers a new account with a bcrypt-hashed password.
func CreateUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		if req.Email == "" || req.Password == "" || req.Name == "" || req.Role == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), 10)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		var opdID interface{}
		if req.OpdID != "" {
			opdID = req.OpdID
		}
		var id string
		err = db.QueryRow(`
			INSERT INTO users (email, password, name, role, opd_id)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			strings.ToLower(strings.TrimSpace(req.Email)), string(hashed), req.Name, req.Role, opdID,
		).Scan(&id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		writeAudit(db, api.GetUserIDFromCtx(r.Context()), "CREATE", "User", id,
			map[string]interface{}{"email": req.Email, "name": req.Name})

		u, err := scanUser(db.QueryRow(userSelect+" WHERE u.id = $1", id))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", u)
	}
}

// UpdateUser edits an account; a non-empty password is rehashed.
func UpdateUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var req userRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		hashed := ""
		if req.Password != "" {
			b, err := bcrypt.GenerateFromPassword([]byte(req.Password), 10)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			hashed = string(b)
		}

		var opdID interface{}
		if req.OpdID != "" {
			opdID = req.OpdID
		}
		res, err := db.Exec(`
			UPDATE users SET
				email = COALESCE(NULLIF($1, ''), email),
				name = COALESCE(NULLIF($2, ''), name),
				role = COALESCE(NULLIF($3, ''), role),
				password = COALESCE(NULLIF($4, ''), password),
				opd_id = COALESCE($5, opd_id)
			WHERE id = $6`,
			strings.ToLower(strings.TrimSpace(req.Email)), req.Name, req.Role, hashed, opdID, id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			api.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}

		writeAudit(db, api.GetUserIDFromCtx(r.Context()), "UPDATE", "User", id,
			map[string]interface{}{"email": req.Email, "name": req.Name, "role": req.Role})

		u, err := scanUser(db.QueryRow(userSelect+" WHERE u.id = $1", id))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", u)
	}
}

// DeleteUser removes an account; self-deletion is refused.
func DeleteUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		actor := api.GetUserIDFromCtx(r.Context())
		if id == actor {
			api.RespondWithError(w, http.StatusBadRequest, "Cannot delete your own account")
			return
		}

		res, err := db.Exec(`DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			api.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}

		writeAudit(db, actor, "DELETE", "User", id, nil)
		api.RespondWithResult(w, true, "")
	}
}

// ToggleUserStatus flips an account between active and inactive;
// self-toggle is refused.
func ToggleUserStatus(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		actor := api.GetUserIDFromCtx(r.Context())
		if id == actor {
			api.RespondWithError(w, http.StatusBadRequest, "Cannot toggle your own account status")
			return
		}

		var isActive bool
		err := db.QueryRow(
			`UPDATE users SET is_active = NOT is_active WHERE id = $1 RETURNING is_active`,
			id).Scan(&isActive)
		if errors.Is(err, sql.ErrNoRows) {
			api.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		writeAudit(db, actor, "UPDATE", "User", id,
			map[string]interface{}{"action": "toggle_status", "isActive": isActive})

		u, err := scanUser(db.QueryRow(userSelect+" WHERE u.id = $1", id))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", u)
	}
}

// GetAuditLogs lists recent audit entries, newest first.
func GetAuditLogs(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 50
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}

		var conds []string
		var args []interface{}
		add := func(expr string, val interface{}) {
			args = append(args, val)
			conds = append(conds, fmt.Sprintf(expr, len(args)))
		}
		if v := q.Get("entity"); v != "" {
			add("a.entity = $%d", v)
		}
		if v := q.Get("action"); v != "" {
			add("a.action = $%d", v)
		}
		if v := q.Get("userId"); v != "" {
			add("a.user_id = $%d", v)
		}

		query := `
			SELECT a.id, a.user_id, COALESCE(u.name, ''), a.action, a.entity,
			       COALESCE(a.entity_id, ''), COALESCE(a.details, ''), COALESCE(a.ip_address, ''),
			       a.created_at
			FROM audit_log a
			LEFT JOIN users u ON u.id = a.user_id`
		for i, c := range conds {
			if i == 0 {
				query += " WHERE " + c
			} else {
				query += " AND " + c
			}
		}
		args = append(args, limit)
		query += fmt.Sprintf(" ORDER BY a.created_at DESC LIMIT $%d", len(args))

		rows, err := db.Query(query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		defer rows.Close()

		type logEntry struct {
			ID        string    `json:"id"`
			UserID    string    `json:"userId"`
			UserName  string    `json:"userName,omitempty"`
			Action    string    `json:"action"`
			Entity    string    `json:"entity"`
			EntityID  string    `json:"entityId,omitempty"`
			Details   string    `json:"details,omitempty"`
			IPAddress string    `json:"ipAddress,omitempty"`
			CreatedAt time.Time `json:"createdAt"`
		}
		entries := []logEntry{}
		for rows.Next() {
			var e logEntry
			if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.Action, &e.Entity,
				&e.EntityID, &e.Details, &e.IPAddress, &e.CreatedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			entries = append(entries, e)
		}
		api.RespondWithPayload(w, true, "", entries)
	}
}

// StartUAMService mounts the user management routes. Everything here is
// admin only.
func StartUAMService(db *sql.DB, port string) error {
	r := mux.NewRouter()
	r.Use(api.SessionMiddleware())
	r.Use(api.RequireRole(constants.RoleAdmin))

	r.HandleFunc("/uam/users", GetAllUsers(db)).Methods("GET")
	r.HandleFunc("/uam/users", CreateUser(db)).Methods("POST")
	r.HandleFunc("/uam/users/{id}", GetUserByID(db)).Methods("GET")
	r.HandleFunc("/uam/users/{id}", UpdateUser(db)).Methods("PUT")
	r.HandleFunc("/uam/users/{id}", DeleteUser(db)).Methods("DELETE")
	r.HandleFunc("/uam/users/{id}/toggle", ToggleUserStatus(db)).Methods("PATCH", "PUT")
	r.HandleFunc("/uam/audit", GetAuditLogs(db)).Methods("GET")

	api.LogInfo("UAM service listening on :%s", port)
	return http.ListenAndServe(":"+port, r)
}
