package stores

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// StoreDTO exposes safe tenant data in API responses.
type StoreDTO struct {
	ID           uuid.UUID       `json:"id"`
	Type         enums.StoreType `json:"type"`
	CompanyName  string          `json:"company_name"`
	DBAName      *string         `json:"dba_name,omitempty"`
	Phone        *string         `json:"phone,omitempty"`
	Email        *string         `json:"email,omitempty"`
	KYCStatus    enums.KYCStatus `json:"kyc_status"`
	Active       bool            `json:"active"`
	Categories   []string        `json:"categories,omitempty"`
	OwnerID      uuid.UUID       `json:"owner"`
	LastActiveAt *time.Time      `json:"last_active_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreateStoreInput holds creation-time data for a new store.
type CreateStoreInput struct {
	Type        enums.StoreType
	CompanyName string
	DBAName     *string
	Phone       *string
	Email       *string
	Categories  []string
	OwnerID     uuid.UUID
}

// UpdateStoreInput captures the allowed store fields for mutation.
type UpdateStoreInput struct {
	CompanyName *string
	DBAName     *string
	Phone       *string
	Email       *string
	Categories  *[]string
}

// FromModel maps the persisted store into a DTO.
func FromModel(m *models.Store) *StoreDTO {
	if m == nil {
		return nil
	}
	return &StoreDTO{
		ID:           m.ID,
		Type:         m.Type,
		CompanyName:  m.CompanyName,
		DBAName:      m.DBAName,
		Phone:        m.Phone,
		Email:        m.Email,
		KYCStatus:    m.KYCStatus,
		Active:       m.Active,
		Categories:   append([]string(nil), m.Categories...),
		OwnerID:      m.OwnerID,
		LastActiveAt: m.LastActiveAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// ToModel prepares the GORM model from creation input, supplying defaults.
func (c CreateStoreInput) ToModel() *models.Store {
	return &models.Store{
		Type:        c.Type,
		CompanyName: c.CompanyName,
		DBAName:     c.DBAName,
		Phone:       c.Phone,
		Email:       c.Email,
		KYCStatus:   enums.KYCStatusPendingVerification,
		Active:      true,
		Categories:  pq.StringArray(c.Categories),
		OwnerID:     c.OwnerID,
	}
}
