package testutil

import (
	"testing"

	"agora/internal/database"
	"agora/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewTestDB opens an in-memory SQLite database with the full schema migrated.
// The pool is pinned to one connection because every new connection to
// ":memory:" would see an empty database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "not-a-real-hash",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateCommunity inserts a community owned by ownerID, with the owner as its
// first member.
func CreateCommunity(t testing.TB, db *gorm.DB, ownerID uint, name string) *models.Community {
	t.Helper()
	community := &models.Community{
		Name:    name,
		NameKey: models.CommunityNameKey(name),
		OwnerID: &ownerID,
	}
	require.NoError(t, db.Omit("Owner").Create(community).Error)
	require.NoError(t, db.Create(&models.Membership{
		UserID:      ownerID,
		CommunityID: community.ID,
		Role:        models.MembershipRoleOwner,
	}).Error)
	return community
}

// CreatePost inserts a post with zeroed counters.
func CreatePost(t testing.TB, db *gorm.DB, authorID, communityID uint, title string) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:       title,
		Content:     title + " content",
		AuthorID:    authorID,
		CommunityID: communityID,
	}
	require.NoError(t, db.Omit("Author", "Community").Create(post).Error)
	return post
}

// CreateComment inserts a comment, optionally as a reply to parentID.
func CreateComment(t testing.TB, db *gorm.DB, postID, authorID uint, parentID *uint, content string) *models.Comment {
	t.Helper()
	comment := &models.Comment{
		Content:  content,
		PostID:   postID,
		AuthorID: authorID,
		ParentID: parentID,
	}
	require.NoError(t, db.Omit("Author").Create(comment).Error)
	return comment
}
