package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cuidamed/backend/internal/model"
)

// AuditRepo defines the interface for the append-only audit log
type AuditRepo interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
}

type auditRepo struct {
	db *sql.DB
}

// NewAuditRepo creates a new AuditRepo instance
func NewAuditRepo(db *sql.DB) AuditRepo {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, entry *model.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor_id, action, target, details)
		VALUES ($1, $2, $3, $4)
	`, entry.ActorID, entry.Action, entry.Target, payload)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
