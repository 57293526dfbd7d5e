package models

import "time"

// MembershipRole defines a member's role in a community.
type MembershipRole string

const (
	// MembershipRoleOwner is held by the user who created the community.
	MembershipRoleOwner MembershipRole = "owner"
	// MembershipRoleMember is the default member role.
	MembershipRoleMember MembershipRole = "member"
)

// Membership is the (user, community) join edge. The pair is the primary key,
// so a user belongs to a community at most once.
type Membership struct {
	UserID      uint           `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User        *User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	CommunityID uint           `gorm:"primaryKey;autoIncrement:false;index" json:"community_id"`
	Community   *Community     `gorm:"foreignKey:CommunityID;constraint:OnDelete:CASCADE" json:"community,omitempty"`
	Role        MembershipRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	JoinedAt    time.Time      `gorm:"autoCreateTime" json:"joined_at"`
}
