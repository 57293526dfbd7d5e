// Package models contains data structures for the application's domain models.
package models

import "time"

// User is an account on the platform. Users own posts, comments, likes and memberships.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:30;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	FirstName string    `gorm:"size:150" json:"first_name"`
	LastName  string    `gorm:"size:150" json:"last_name"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSuggestion records that SuggestedUser was recommended to User.
type UserSuggestion struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;uniqueIndex:idx_user_suggestions_pair" json:"user_id"`
	SuggestedUserID uint      `gorm:"not null;uniqueIndex:idx_user_suggestions_pair;index" json:"suggested_user_id"`
	SuggestedUser   *User     `gorm:"foreignKey:SuggestedUserID;constraint:OnDelete:CASCADE" json:"suggested_user,omitempty"`
	Reason          string    `gorm:"size:255" json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}
