// Package audit appends actor/action/target records for mutating operations.
package audit

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/model"
	"github.com/cuidamed/backend/internal/repo"
)

// Recorder is the append-only audit sink.
type Recorder struct {
	auditRepo repo.AuditRepo
}

// NewRecorder creates a new audit recorder
func NewRecorder(auditRepo repo.AuditRepo) *Recorder {
	return &Recorder{auditRepo: auditRepo}
}

// Record appends an audit entry. Failures are logged but never fail the
// operation being audited.
func (r *Recorder) Record(ctx context.Context, actorID uuid.UUID, action, target string, details map[string]any) {
	entry := &model.AuditEntry{
		ActorID: actorID,
		Action:  action,
		Target:  target,
		Details: details,
	}
	if err := r.auditRepo.Append(ctx, entry); err != nil {
		log.Printf("audit append failed (action=%s target=%s): %v", action, target, err)
	}
}
