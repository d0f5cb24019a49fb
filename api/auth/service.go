package auth

import (
	"SimonPaket/internal/logger"
	"SimonPaket/internal/serviceiface"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type UserSession struct {
	SessionID     string
	UserID        string
	Name          string
	Email         string
	Role          string
	OpdID         string
	OpdName       string
	LastLoginTime string
	ClientIP      string
	IsLoggedIn    bool
}

type AuthService struct {
	db             *sql.DB
	maxUsers       int
	sessionTimeout time.Duration
	users          map[string]*UserSession
	userPointers   map[string]*UserSession
	mu             sync.Mutex
	stopCh         chan struct{}
}

func NewAuthService(db *sql.DB, maxUsers, sessionTimeoutMinutes int) serviceiface.Service {
	if maxUsers <= 0 {
		maxUsers = 200
	}
	if sessionTimeoutMinutes <= 0 {
		sessionTimeoutMinutes = 12 * 60
	}
	return &AuthService{
		db:             db,
		maxUsers:       maxUsers,
		sessionTimeout: time.Duration(sessionTimeoutMinutes) * time.Minute,
		users:          make(map[string]*UserSession),
		userPointers:   make(map[string]*UserSession),
		stopCh:         make(chan struct{}),
	}
}

func (a *AuthService) Name() string { return "auth" }

func (a *AuthService) Start() error {
	go a.sessionCleaner()
	return nil
}

func (a *AuthService) Stop() error {
	close(a.stopCh)
	return nil
}

func (a *AuthService) Login(email, password, clientIP string) (*UserSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, session := range a.users {
		if session.Email == email && session.IsLoggedIn {
			session.LastLoginTime = time.Now().Format(time.RFC3339)
			session.ClientIP = clientIP
			if logger.GlobalLogger != nil {
				logger.GlobalLogger.LogAudit(fmt.Sprintf("User %s re-logged in, returning existing session", email))
			}
			return session, nil
		}
	}

	if len(a.users) >= a.maxUsers {
		return nil, errors.New("maximum concurrent users reached")
	}

	var (
		userID, name, hash, role string
		isActive                 bool
		opdID, opdName           sql.NullString
	)
	query := `
    SELECT u.id, u.name, u.password, u.role, u.is_active, u.opd_id, o.name
    FROM users u
    LEFT JOIN opd o ON o.id = u.opd_id
    WHERE u.email = $1
    `
	err := a.db.QueryRow(query, email).Scan(&userID, &name, &hash, &role, &isActive, &opdID, &opdName)
	if err != nil {
		return nil, errors.New("invalid credentials or user not found")
	}
	if !isActive {
		return nil, errors.New("account is inactive")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, errors.New("invalid credentials or user not found")
	}

	sessionID := generateSessionID()
	session := &UserSession{
		SessionID:     sessionID,
		UserID:        userID,
		Name:          name,
		Email:         email,
		Role:          role,
		OpdID:         opdID.String,
		OpdName:       opdName.String,
		LastLoginTime: time.Now().Format(time.RFC3339),
		ClientIP:      clientIP,
		IsLoggedIn:    true,
	}
	a.users[sessionID] = session
	a.userPointers[userID] = session

	// login trail; failure here must not block the login itself
	if _, err := a.db.Exec(
		`INSERT INTO audit_log (user_id, action, entity, entity_id, ip_address) VALUES ($1,'LOGIN','User',$1,$2)`,
		userID, clientIP,
	); err != nil && logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("login audit insert failed: " + err.Error())
	}

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit(fmt.Sprintf("User logged in: %s", email))
	}
	return session, nil
}

func (a *AuthService) Logout(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, exists := a.users[sessionID]
	if !exists {
		return errors.New("session not found")
	}
	delete(a.users, sessionID)
	delete(a.userPointers, session.UserID)

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("User logged out: " + session.UserID)
	}
	return nil
}

var globalAuthService *AuthService

// SetGlobalAuthService sets the global AuthService instance
func SetGlobalAuthService(svc *AuthService) {
	globalAuthService = svc
}

// GetActiveSessions returns active sessions from the global AuthService
func GetActiveSessions() []*UserSession {
	if globalAuthService == nil {
		return nil
	}
	return globalAuthService.GetActiveSessions()
}

// SessionByUserID returns the active session for a user id, or nil
func SessionByUserID(userID string) *UserSession {
	if globalAuthService == nil {
		return nil
	}
	globalAuthService.mu.Lock()
	defer globalAuthService.mu.Unlock()
	return globalAuthService.userPointers[userID]
}

func (a *AuthService) GetActiveSessions() []*UserSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	sessions := make([]*UserSession, 0, len(a.users))
	for _, s := range a.users {
		sessions = append(sessions, s)
	}
	return sessions
}

func (a *AuthService) sessionCleaner() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.mu.Lock()
			cutoff := time.Now().Add(-a.sessionTimeout)
			for id, s := range a.users {
				last, err := time.Parse(time.RFC3339, s.LastLoginTime)
				if err == nil && last.Before(cutoff) {
					delete(a.users, id)
					delete(a.userPointers, s.UserID)
				}
			}
			a.mu.Unlock()
		}
	}
}

func generateSessionID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
