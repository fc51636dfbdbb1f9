package models

import (
	"time"

	"gorm.io/gorm"
)

// User mirrors an identity issued by the external identity provider. Rows are
// refreshed from verified tokens; the provider remains the source of truth.
type User struct {
	ID         string     `gorm:"primaryKey;size:191" json:"id"`
	Username   string     `gorm:"size:100" json:"username"`
	Email      string     `gorm:"size:255" json:"email"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt  time.Time  `json:"-"`
	UpdatedAt  time.Time  `json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}
