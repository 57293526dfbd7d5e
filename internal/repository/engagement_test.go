package repository

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type engagementFixture struct {
	db      *gorm.DB
	repo    EngagementRepository
	users   []*models.User
	post    *models.Post
	other   *models.Post
	comment *models.Comment
}

func newEngagementFixture(t *testing.T) *engagementFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	f := &engagementFixture{db: db, repo: NewEngagementRepository(db)}
	for _, name := range []string{"ann", "ben", "cat"} {
		f.users = append(f.users, testutil.CreateUser(t, db, name))
	}
	community := testutil.CreateCommunity(t, db, f.users[0].ID, "Go")
	f.post = testutil.CreatePost(t, db, f.users[0].ID, community.ID, "liked")
	f.other = testutil.CreatePost(t, db, f.users[0].ID, community.ID, "other")
	f.comment = testutil.CreateComment(t, db, f.post.ID, f.users[1].ID, nil, "comment")
	return f
}

func (f *engagementFixture) storedLikes(t *testing.T, postID uint) int64 {
	t.Helper()
	var post models.Post
	require.NoError(t, f.db.First(&post, postID).Error)
	return post.LikesCount
}

func TestEngagementRepository_LikeUnlikeRestoresCount(t *testing.T) {
	f := newEngagementFixture(t)
	ctx := context.Background()
	user := f.users[1].ID

	count, created, err := f.repo.LikePost(ctx, f.post.ID, user)
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, 1, count)

	count, removed, err := f.repo.UnlikePost(ctx, f.post.ID, user)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.EqualValues(t, 0, count)
	assert.EqualValues(t, 0, f.storedLikes(t, f.post.ID))

	count, removed, err = f.repo.UnlikePost(ctx, f.post.ID, user)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.EqualValues(t, 0, count)
}

func TestEngagementRepository_LikeIsIdempotent(t *testing.T) {
	f := newEngagementFixture(t)
	ctx := context.Background()

	_, _, err := f.repo.LikePost(ctx, f.post.ID, f.users[1].ID)
	require.NoError(t, err)
	count, created, err := f.repo.LikePost(ctx, f.post.ID, f.users[1].ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.EqualValues(t, 1, count)

	var edges int64
	require.NoError(t, f.db.Model(&models.PostLike{}).Count(&edges).Error)
	assert.EqualValues(t, 1, edges)
}

func TestEngagementRepository_TwoLikesThenOneUnlike(t *testing.T) {
	f := newEngagementFixture(t)
	ctx := context.Background()

	_, _, err := f.repo.LikePost(ctx, f.post.ID, f.users[1].ID)
	require.NoError(t, err)
	count, _, err := f.repo.LikePost(ctx, f.post.ID, f.users[2].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	count, _, err = f.repo.UnlikePost(ctx, f.post.ID, f.users[1].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.EqualValues(t, 0, f.storedLikes(t, f.other.ID))
}

func TestEngagementRepository_ConcurrentLikesMatchEdges(t *testing.T) {
	f := newEngagementFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, u := range f.users {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, _, err := f.repo.LikePost(ctx, f.post.ID, userID)
			assert.NoError(t, err)
		}(u.ID)
	}
	wg.Wait()

	assert.EqualValues(t, len(f.users), f.storedLikes(t, f.post.ID))
}

func TestEngagementRepository_Toggle(t *testing.T) {
	f := newEngagementFixture(t)
	ctx := context.Background()

	liked, count, err := f.repo.ToggleLikePost(ctx, f.post.ID, f.users[2].ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.EqualValues(t, 1, count)

	liked, count, err = f.repo.ToggleLikePost(ctx, f.post.ID, f.users[2].ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.EqualValues(t, 0, count)
}

func TestEngagementRepository_MissingPost(t *testing.T) {
	f := newEngagementFixture(t)
	ctx := context.Background()

	_, _, err := f.repo.LikePost(ctx, 999, f.users[0].ID)
	assert.True(t, models.IsNotFound(err))
	_, _, err = f.repo.ToggleLikePost(ctx, 999, f.users[0].ID)
	assert.True(t, models.IsNotFound(err))
	_, err = f.repo.SharePost(ctx, 999)
	assert.True(t, models.IsNotFound(err))
}

func TestEngagementRepository_SharesAreNotDeduplicated(t *testing.T) {
	f := newEngagementFixture(t)
	ctx := context.Background()

	var count int64
	var err error
	for i := 0; i < 3; i++ {
		count, err = f.repo.SharePost(ctx, f.post.ID)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, count)
}

func TestEngagementRepository_SharePostSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewEngagementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "share_count"=share_count + $1 WHERE id = $2`)).
		WithArgs(1, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT "?share_count"? FROM "posts" WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"share_count"}).AddRow(4))
	mock.ExpectCommit()

	count, err := repo.SharePost(context.Background(), 7)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementRepository_CommentLikes(t *testing.T) {
	f := newEngagementFixture(t)
	ctx := context.Background()

	count, created, err := f.repo.LikeComment(ctx, f.post.ID, f.comment.ID, f.users[0].ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, 1, count)

	var stored models.Comment
	require.NoError(t, f.db.First(&stored, f.comment.ID).Error)
	assert.EqualValues(t, 1, stored.LikeCount)

	_, _, err = f.repo.LikeComment(ctx, f.other.ID, f.comment.ID, f.users[0].ID)
	assert.True(t, models.IsNotFound(err))

	count, removed, err := f.repo.UnlikeComment(ctx, f.post.ID, f.comment.ID, f.users[0].ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.EqualValues(t, 0, count)
}

func TestEngagementRepository_ReconcileRepairsDrift(t *testing.T) {
	f := newEngagementFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Create(&models.PostLike{UserID: f.users[1].ID, PostID: f.post.ID}).Error)
	require.NoError(t, f.db.Model(&models.Post{}).Where("id = ?", f.other.ID).UpdateColumn("likes_count", 9).Error)
	require.NoError(t, f.db.Model(&models.Comment{}).Where("id = ?", f.comment.ID).UpdateColumn("like_count", 3).Error)

	repaired, err := f.repo.ReconcilePostCounts(ctx, []uint{f.post.ID, f.other.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, repaired)
	assert.EqualValues(t, 1, f.storedLikes(t, f.post.ID))
	assert.EqualValues(t, 0, f.storedLikes(t, f.other.ID))

	repaired, err = f.repo.ReconcilePostCounts(ctx, []uint{f.post.ID, f.other.ID})
	require.NoError(t, err)
	assert.Zero(t, repaired)

	repaired, err = f.repo.ReconcileCommentCounts(ctx, []uint{f.comment.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, repaired)
}

func TestEngagementRepository_LikedIDs(t *testing.T) {
	f := newEngagementFixture(t)
	ctx := context.Background()

	_, _, err := f.repo.LikePost(ctx, f.post.ID, f.users[2].ID)
	require.NoError(t, err)

	liked, err := f.repo.LikedPostIDs(ctx, f.users[2].ID, []uint{f.post.ID, f.other.ID})
	require.NoError(t, err)
	assert.True(t, liked[f.post.ID])
	assert.False(t, liked[f.other.ID])

	anon, err := f.repo.LikedPostIDs(ctx, 0, []uint{f.post.ID})
	require.NoError(t, err)
	assert.Empty(t, anon)

	_, _, err = f.repo.LikeComment(ctx, f.post.ID, f.comment.ID, f.users[2].ID)
	require.NoError(t, err)
	likedComments, err := f.repo.LikedCommentIDs(ctx, f.users[2].ID, []uint{f.comment.ID})
	require.NoError(t, err)
	assert.True(t, likedComments[f.comment.ID])
}
