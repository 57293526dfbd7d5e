package models

import (
	"strings"
	"time"
)

// Community is a named group that users join and post into.
type Community struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	NameKey     string `gorm:"size:100;uniqueIndex;not null" json:"-"`
	Description string `gorm:"type:text" json:"description"`
	OwnerID     *uint  `gorm:"index" json:"owner_id"`
	Owner       *User  `gorm:"foreignKey:OwnerID;constraint:OnDelete:SET NULL" json:"owner,omitempty"`
	// MemberCount is computed at query time
	MemberCount int64     `gorm:"->;-:migration" json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CommunityNameKey folds a community name into its uniqueness key.
func CommunityNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
