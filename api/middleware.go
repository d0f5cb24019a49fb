package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"SimonPaket/api/auth"
	"SimonPaket/api/constants"
)

type contextKey string

const (
	SessionKey contextKey = "session"
	UserIDKey  contextKey = "userID"
	RoleKey    contextKey = "role"
	OpdIDKey   contextKey = "opdID"
)

// GetSessionFromCtx returns the authenticated session attached by SessionMiddleware
func GetSessionFromCtx(ctx context.Context) *auth.UserSession {
	if s, ok := ctx.Value(SessionKey).(*auth.UserSession); ok {
		return s
	}
	return nil
}

func GetUserIDFromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

func GetRoleFromCtx(ctx context.Context) string {
	if role, ok := ctx.Value(RoleKey).(string); ok {
		return role
	}
	return ""
}

// GetOpdIDFromCtx returns the caller's OPD scope; empty for ADMIN/VIEWER
func GetOpdIDFromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(OpdIDKey).(string); ok {
		return id
	}
	return ""
}

// extractUserID pulls user_id from a JSON body, multipart form or query string,
// resetting the body for downstream handlers.
func extractUserID(r *http.Request) string {
	ct := r.Header.Get(constants.ContentTypeText)
	if strings.HasPrefix(ct, constants.ContentTypeJSON) && (r.Method == "POST" || r.Method == "PUT" || r.Method == "DELETE") {
		var bodyMap map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&bodyMap)
		bodyBytes, _ := json.Marshal(bodyMap)
		r.Body = io.NopCloser(strings.NewReader(string(bodyBytes)))
		if uid, ok := bodyMap[constants.KeyUserID].(string); ok {
			return uid
		}
	} else if strings.HasPrefix(ct, constants.ContentTypeMultipart) && (r.Method == "POST" || r.Method == "PUT") {
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			if uid := r.FormValue(constants.KeyUserID); uid != "" {
				return uid
			}
		}
	}
	return r.URL.Query().Get(constants.KeyUserID)
}

// SessionMiddleware resolves user_id from the request, validates the active
// session and attaches the session, role and OPD scope to the context.
func SessionMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := extractUserID(r)
			if userID == "" {
				RespondWithError(w, http.StatusBadRequest, constants.ErrMissingUserID)
				return
			}

			session := auth.SessionByUserID(userID)
			if session == nil || !session.IsLoggedIn {
				RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, session)
			ctx = context.WithValue(ctx, UserIDKey, session.UserID)
			ctx = context.WithValue(ctx, RoleKey, session.Role)
			if session.Role == constants.RoleOPD {
				ctx = context.WithValue(ctx, OpdIDKey, session.OpdID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole guards a handler behind one or more roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetRoleFromCtx(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			RespondWithError(w, http.StatusForbidden, constants.ErrForbidden)
		})
	}
}
