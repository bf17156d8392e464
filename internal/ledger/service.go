package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
)

// Service defines operations over the append-only credit ledger.
type Service interface {
	AppendEntry(ctx context.Context, input AppendEntryInput) (*models.LedgerEntry, error)
	AppendEntryTx(ctx context.Context, tx *gorm.DB, input AppendEntryInput) (*models.LedgerEntry, error)
	GetBalance(ctx context.Context, debtorID, creditorID uuid.UUID) (decimal.Decimal, error)
	ListEntries(ctx context.Context, debtorID, creditorID uuid.UUID) ([]models.LedgerEntry, error)
}

type service struct {
	repo Repository
}

// AppendEntryInput captures the immutable data a ledger entry requires.
// Amount must be strictly positive; the entry type carries the sign.
type AppendEntryInput struct {
	DebtorStoreID   uuid.UUID             `json:"debtor_store_id"`
	CreditorStoreID uuid.UUID             `json:"creditor_store_id"`
	OrderID         *uuid.UUID            `json:"order_id,omitempty"`
	Type            enums.LedgerEntryType `json:"type"`
	Amount          decimal.Decimal       `json:"amount"`
	Reference       *string               `json:"reference,omitempty"`
	Metadata        json.RawMessage       `json:"metadata,omitempty"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) AppendEntry(ctx context.Context, input AppendEntryInput) (*models.LedgerEntry, error) {
	return s.append(ctx, s.repo, input)
}

// AppendEntryTx appends inside the caller's transaction, so the entry commits
// or rolls back together with the caller's writes.
func (s *service) AppendEntryTx(ctx context.Context, tx *gorm.DB, input AppendEntryInput) (*models.LedgerEntry, error) {
	return s.append(ctx, s.repo.WithTx(tx), input)
}

func (s *service) append(ctx context.Context, repo Repository, input AppendEntryInput) (*models.LedgerEntry, error) {
	if input.DebtorStoreID == uuid.Nil {
		return nil, fmt.Errorf("debtor store id is required")
	}
	if input.CreditorStoreID == uuid.Nil {
		return nil, fmt.Errorf("creditor store id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger entry type %q", input.Type)
	}
	if !input.Amount.IsPositive() {
		return nil, apperrors.New(apperrors.CodeValidation, "ledger amount must be positive").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}

	entry := &models.LedgerEntry{
		DebtorStoreID:   input.DebtorStoreID,
		CreditorStoreID: input.CreditorStoreID,
		OrderID:         input.OrderID,
		Type:            input.Type,
		Amount:          input.Amount,
		Reference:       input.Reference,
		Metadata:        input.Metadata,
	}

	if err := repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetBalance recomputes the outstanding balance from the entries every time.
// No balance column exists to drift.
func (s *service) GetBalance(ctx context.Context, debtorID, creditorID uuid.UUID) (decimal.Decimal, error) {
	if debtorID == uuid.Nil || creditorID == uuid.Nil {
		return decimal.Zero, fmt.Errorf("debtor and creditor store ids are required")
	}
	entries, err := s.repo.ListByPair(ctx, debtorID, creditorID)
	if err != nil {
		return decimal.Zero, err
	}
	return Fold(entries), nil
}

func (s *service) ListEntries(ctx context.Context, debtorID, creditorID uuid.UUID) ([]models.LedgerEntry, error) {
	if debtorID == uuid.Nil || creditorID == uuid.Nil {
		return nil, fmt.Errorf("debtor and creditor store ids are required")
	}
	return s.repo.ListByPair(ctx, debtorID, creditorID)
}

// Fold computes sum(debit) - sum(credit) + sum(adjustment) over the entries.
func Fold(entries []models.LedgerEntry) decimal.Decimal {
	balance := decimal.Zero
	for _, entry := range entries {
		switch entry.Type {
		case enums.LedgerEntryTypeDebit, enums.LedgerEntryTypeAdjustment:
			balance = balance.Add(entry.Amount)
		case enums.LedgerEntryTypeCredit:
			balance = balance.Sub(entry.Amount)
		}
	}
	return balance
}
