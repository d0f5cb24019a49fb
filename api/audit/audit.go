package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one row for the audit_log table.
type Entry struct {
	UserID    string
	Action    string // CREATE | UPDATE | DELETE | LOGIN | IMPORT_PAKET | EXPORT_PAKET | ...
	Entity    string // Paket | OPD | User | Document
	EntityID  string
	Details   map[string]interface{}
	IPAddress string
}

// Log writes one audit entry. Fire-and-forget: failures are logged and
// swallowed so an audit problem never fails the calling operation.
func Log(pool *pgxpool.Pool, e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var details interface{}
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err == nil {
			details = string(b)
		}
	}
	var ip interface{}
	if e.IPAddress != "" {
		ip = e.IPAddress
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO audit_log (user_id, action, entity, entity_id, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.UserID, e.Action, e.Entity, e.EntityID, details, ip,
	)
	if err != nil {
		log.Println("[ERROR] audit insert failed:", err)
	}
}
