package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// Store represents the canonical tenant model. Wholesalers list the product
// categories they cover; routing eligibility reads that list.
type Store struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type         enums.StoreType `gorm:"column:type;type:store_type;not null"`
	CompanyName  string          `gorm:"column:company_name;not null"`
	DBAName      *string         `gorm:"column:dba_name"`
	Phone        *string         `gorm:"column:phone"`
	Email        *string         `gorm:"column:email"`
	KYCStatus    enums.KYCStatus `gorm:"column:kyc_status;type:kyc_status;not null;default:'pending_verification'"`
	Active       bool            `gorm:"column:active;not null;default:true"`
	Categories   pq.StringArray  `gorm:"column:categories;type:text[]"`
	OwnerID      uuid.UUID       `gorm:"column:owner;type:uuid;not null"`
	LastActiveAt *time.Time      `gorm:"column:last_active_at"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
