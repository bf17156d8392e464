package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

const (
	OutcomeApproved = "approved"
	OutcomeDenied   = "denied"
)

// RecordInput captures one audited action.
type RecordInput struct {
	Action     enums.AuditAction
	ActorID    uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Outcome    string
	Details    any
}

// Recorder appends audit rows, usually inside the caller's transaction so the
// audit row commits with the change it documents.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) error
}

type recorder struct {
	repo Repository
}

// NewRecorder wires an audit recorder with the provided repository.
func NewRecorder(repo Repository) (Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &recorder{repo: repo}, nil
}

func (r *recorder) Record(ctx context.Context, tx *gorm.DB, input RecordInput) error {
	if !input.Action.IsValid() {
		return fmt.Errorf("invalid audit action %q", input.Action)
	}
	if input.ActorID == uuid.Nil {
		return fmt.Errorf("actor id required")
	}
	if input.EntityID == uuid.Nil {
		return fmt.Errorf("entity id required")
	}
	outcome := input.Outcome
	if outcome == "" {
		outcome = OutcomeApproved
	}

	var details json.RawMessage
	if input.Details != nil {
		raw, err := json.Marshal(input.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = raw
	}

	repo := r.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	return repo.Create(ctx, &models.AdminAuditLog{
		Action:     input.Action,
		ActorID:    input.ActorID,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Outcome:    outcome,
		Details:    details,
	})
}
