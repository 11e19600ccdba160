package models

import (
	"time"
)

// Session is one authenticated browser session. It is usable while
// now < ExpiresAt and Active is true, and refreshable while
// now < RefreshExpiresAt. RefreshExpiresAt is fixed at issuance and is
// never extended by a refresh.
type Session struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	UserID           string    `json:"user_id" gorm:"not null;index"`
	TenantID         string    `json:"tenant_id" gorm:"not null"`
	IssuedAt         time.Time `json:"issued_at" gorm:"not null"`
	ExpiresAt        time.Time `json:"expires_at" gorm:"not null"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at" gorm:"not null"`
	Active           bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
