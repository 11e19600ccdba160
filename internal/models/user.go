package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

// Claims is the payload of the session token. SessionID points at the
// server-side session record so validity can be re-checked against the store.
type Claims struct {
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

type User struct {
	ID          string `json:"id" gorm:"primaryKey"`
	TenantID    string `json:"tenant_id" gorm:"not null;index"`
	Email       string `json:"email" gorm:"not null;uniqueIndex"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone,omitempty"`
	Status      Status `json:"status" gorm:"not null;default:active"`

	// PasswordHash is a bcrypt hash. LegacySalt/LegacyHash carry the old
	// sha256(password+salt) scheme for accounts that have not logged in
	// since the migration; both are cleared on rehash.
	PasswordHash string `json:"-"`
	LegacySalt   string `json:"-"`
	LegacyHash   string `json:"-"`

	Roles []RoleAssignment `json:"roles" gorm:"foreignKey:UserID"`

	LastLogin time.Time `json:"last_login"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleAssignment links a user to a role. Position preserves assignment
// order; the resolver treats the lowest position as the primary role.
type RoleAssignment struct {
	ID       int64  `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"not null;index"`
	RoleID   int64  `json:"role_id" gorm:"not null"`
	Position int    `json:"position" gorm:"not null;default:0"`
	Role     Role   `json:"role" gorm:"foreignKey:RoleID"`
}

type Role struct {
	ID   int64  `json:"id" gorm:"primaryKey"`
	Code string `json:"code" gorm:"index"`
	Name string `json:"name" gorm:"not null"`

	// Permissions overrides the static bundle for the role's code when
	// non-empty.
	Permissions []string `json:"permissions" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	SessionID string       `json:"session_id"`
	User      UserResponse `json:"user"`
}

// UserResponse is the wire shape of an authenticated user: the stored
// record plus its resolved role and permission set.
type UserResponse struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Phone       string    `json:"phone,omitempty"`
	Status      Status    `json:"status"`
	RoleCode    string    `json:"role_code"`
	RoleID      int64     `json:"role_id"`
	Permissions []string  `json:"permissions"`
	LastLogin   time.Time `json:"last_login"`
}
