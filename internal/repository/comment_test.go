package repository

import (
	"context"
	"regexp"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	comment := &models.Comment{Content: "Nice post!", PostID: 1, AuthorID: 1}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "posts" WHERE "posts"."id" = $1`)).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, comment)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, comment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_CreateValidatesParent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "user")
	community := testutil.CreateCommunity(t, db, user.ID, "Go")
	post1 := testutil.CreatePost(t, db, user.ID, community.ID, "one")
	post2 := testutil.CreatePost(t, db, user.ID, community.ID, "two")
	parent := testutil.CreateComment(t, db, post1.ID, user.ID, nil, "root")

	tests := []struct {
		name    string
		comment *models.Comment
		code    string
		message string
	}{
		{
			name:    "parent on another post",
			comment: &models.Comment{Content: "x", PostID: post2.ID, AuthorID: user.ID, ParentID: &parent.ID},
			code:    models.CodeValidation,
			message: "Parent comment must belong to the same post",
		},
		{
			name:    "missing parent",
			comment: &models.Comment{Content: "x", PostID: post1.ID, AuthorID: user.ID, ParentID: uintPtr(999)},
			code:    models.CodeValidation,
			message: "Invalid parent comment",
		},
		{
			name:    "missing post",
			comment: &models.Comment{Content: "x", PostID: 999, AuthorID: user.ID},
			code:    models.CodeNotFound,
			message: "Post with ID 999 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.comment)
			require.Error(t, err)
			assert.Equal(t, tt.code, models.ErrorCode(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}

	var n int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestCommentRepository_ThreadQueries(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "user")
	community := testutil.CreateCommunity(t, db, user.ID, "Go")
	post := testutil.CreatePost(t, db, user.ID, community.ID, "p")

	c1 := testutil.CreateComment(t, db, post.ID, user.ID, nil, "C1")
	c2 := testutil.CreateComment(t, db, post.ID, user.ID, &c1.ID, "C2")
	c3 := testutil.CreateComment(t, db, post.ID, user.ID, nil, "C3")
	require.NoError(t, db.Create(&models.CommentLike{UserID: user.ID, CommentID: c2.ID}).Error)

	roots, err := repo.ListRoots(ctx, post.ID, 0)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, c3.ID, roots[0].ID)
	assert.Equal(t, c1.ID, roots[1].ID)
	require.NotNil(t, roots[0].Author)

	children, err := repo.ListChildren(ctx, post.ID, []uint{c1.ID, c3.ID}, user.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, c2.ID, children[0].ID)
	assert.True(t, children[0].IsLikedByUser)

	all, err := repo.ListByPost(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	count, err := repo.CountByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	_, err = repo.GetByID(ctx, post.ID+1, c1.ID, 0)
	assert.True(t, models.IsNotFound(err))
}

func TestCommentRepository_DeleteRemovesSubtree(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "user")
	community := testutil.CreateCommunity(t, db, user.ID, "Go")
	post := testutil.CreatePost(t, db, user.ID, community.ID, "p")

	root := testutil.CreateComment(t, db, post.ID, user.ID, nil, "root")
	child := testutil.CreateComment(t, db, post.ID, user.ID, &root.ID, "child")
	grandchild := testutil.CreateComment(t, db, post.ID, user.ID, &child.ID, "grandchild")
	sibling := testutil.CreateComment(t, db, post.ID, user.ID, nil, "sibling")
	require.NoError(t, db.Create(&models.CommentLike{UserID: user.ID, CommentID: grandchild.ID}).Error)

	require.NoError(t, repo.Delete(ctx, root.ID))

	var remaining []uint
	require.NoError(t, db.Model(&models.Comment{}).Pluck("id", &remaining).Error)
	assert.Equal(t, []uint{sibling.ID}, remaining)

	var likes int64
	require.NoError(t, db.Model(&models.CommentLike{}).Count(&likes).Error)
	assert.Zero(t, likes)
}
