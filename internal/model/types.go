package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level attached to an account and carried in the session token.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleUser     Role = "user"
)

// AccountStatus is the activation state of an account. The only transition is
// inactive -> active, performed once by verification-token redemption.
type AccountStatus string

const (
	AccountInactive AccountStatus = "inactive"
	AccountActive   AccountStatus = "active"
)

// Account represents a registered user in the system
type Account struct {
	ID           uuid.UUID
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	Status       AccountStatus

	FailedAttempts int
	LockedUntil    *time.Time

	OTP        *int
	OTPExpires *time.Time

	ResetCode    *string
	ResetExpires *time.Time

	VerificationToken *string

	CreatedAt time.Time
}

// Locked reports whether the account is inside an active lockout window.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// DocumentStatus is the lifecycle state of a regulatory document version.
type DocumentStatus string

const (
	DocumentActive   DocumentStatus = "active"
	DocumentInactive DocumentStatus = "inactive"
	DocumentDeleted  DocumentStatus = "deleted"
)

// Document is a version of a regulatory document in the live collection.
// Title is not unique: versions of the same document share a title, but at
// most one row per title may be active at any time.
type Document struct {
	ID         uuid.UUID
	Title      string
	Content    string
	Author     string
	ValidUntil time.Time
	Version    string
	Status     DocumentStatus
	CreatedAt  time.Time
}

// ArchivedDocument is a superseded or deleted document version moved out of
// the live collection. Archive names the title-specific destination it was
// filed under; Status holds the state the row had when it was archived.
type ArchivedDocument struct {
	ID         uuid.UUID
	Archive    string
	Title      string
	Content    string
	Author     string
	ValidUntil time.Time
	Version    string
	Status     DocumentStatus
	CreatedAt  time.Time
	MovedAt    time.Time
}

// ConfigEntry is a generic runtime tunable keyed by type tag.
type ConfigEntry struct {
	Type      string
	Value     string
	UpdatedAt time.Time
}

// AuditEntry is an append-only record of a mutating operation.
type AuditEntry struct {
	ID        uuid.UUID
	ActorID   uuid.UUID
	Action    string
	Target    string
	Details   map[string]any
	CreatedAt time.Time
}

// FrontSetting is a front-end display setting (banner text, contact data, ...).
type FrontSetting struct {
	Type      string
	Value     string
	UpdatedAt time.Time
}

// LogoConfig holds the current logo and the history of every logo ever set.
type LogoConfig struct {
	CurrentLogo string
	LogoHistory []string
	UpdatedAt   time.Time
}
