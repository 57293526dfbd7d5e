package models

import "time"

// Post is a piece of content published by a user into a community.
// LikesCount and ShareCount are denormalized counters; LikesCount always
// equals the number of PostLike rows for the post once a write commits.
type Post struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	ImageURL    string     `gorm:"size:512" json:"image_url"`
	AuthorID    uint       `gorm:"not null;index" json:"author_id"`
	Author      *User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	CommunityID uint       `gorm:"not null;index" json:"community_id"`
	Community   *Community `gorm:"foreignKey:CommunityID;constraint:OnDelete:CASCADE" json:"community,omitempty"`
	LikesCount  int64      `gorm:"not null;default:0" json:"likes_count"`
	ShareCount  int64      `gorm:"not null;default:0" json:"share_count"`
	// CommentCount and IsLikedByUser are computed at query time
	CommentCount  int64     `gorm:"->;-:migration" json:"comment_count"`
	IsLikedByUser bool      `gorm:"column:liked;->;-:migration" json:"is_liked_by_user"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PostLike is the (user, post) like edge.
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_likes_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_likes_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a threaded reply on a post. A non-nil ParentID always refers
// to a comment on the same post.
type Comment struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Content   string `gorm:"type:text;not null" json:"content"`
	PostID    uint   `gorm:"not null;index" json:"post_id"`
	AuthorID  uint   `gorm:"not null;index" json:"author_id"`
	Author    *User  `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	ParentID  *uint  `gorm:"index" json:"parent"`
	LikeCount int64  `gorm:"not null;default:0" json:"like_count"`
	// IsLikedByUser is computed at query time for the requesting viewer
	IsLikedByUser bool      `gorm:"column:liked;->;-:migration" json:"is_liked_by_user"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CommentLike is the (user, comment) like edge.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_likes_user_comment" json:"user_id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_likes_user_comment;index" json:"comment_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Image is an uploaded post image stored in object storage.
type Image struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Hash       string    `gorm:"size:64;uniqueIndex;not null" json:"hash"`
	UploaderID uint      `gorm:"not null;index" json:"uploader_id"`
	ObjectKey  string    `gorm:"size:255;not null" json:"-"`
	MimeType   string    `gorm:"size:50;not null" json:"mime_type"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}
