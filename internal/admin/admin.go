package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flickfooty/backend/internal/logger"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// Action is one row of the admin_audit table.
type Action struct {
	ID        int64           `db:"id" json:"id"`
	IP        string          `db:"ip" json:"ip"`
	Route     string          `db:"route" json:"route"`
	Action    string          `db:"action" json:"action"`
	Details   json.RawMessage `db:"details" json:"details"`
	Success   bool            `db:"success" json:"success"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// HashKey returns the bcrypt hash to put in ADMIN_KEY_HASH.
func HashKey(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin key: %w", err)
	}
	return string(hashed), nil
}

// VerifyKey checks if the provided key matches the stored hash
func VerifyKey(hashed, plain string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}

// LogAction records an admin call. A nil db makes it a no-op so servers
// running without PostgreSQL still serve admin routes.
func LogAction(ctx context.Context, db *sqlx.DB, ip, route, action string, details map[string]interface{}, success bool) error {
	if db == nil {
		return nil
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		logger.Warnf("[ADMIN] Failed to marshal audit details: %v", err)
		detailsJSON = []byte("{}")
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO admin_audit (ip, route, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, ip, route, action, detailsJSON, success)
	if err != nil {
		logger.Errorf("[ADMIN] Failed to log admin action: %v", err)
		return fmt.Errorf("insert admin audit: %w", err)
	}
	return nil
}

func RecentActions(ctx context.Context, db *sqlx.DB, limit, offset int) ([]Action, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Action
	err := db.SelectContext(ctx, &out, `SELECT id, ip, route, action, details, success, created_at FROM admin_audit ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select admin audit: %w", err)
	}
	return out, nil
}
