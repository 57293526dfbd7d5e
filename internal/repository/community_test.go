package repository

import (
	"context"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommunityRepository_CreateAddsOwnerMembership(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")

	community := &models.Community{Name: "Gophers", OwnerID: &owner.ID}
	require.NoError(t, repo.Create(ctx, community))
	assert.Equal(t, "gophers", community.NameKey)
	assert.EqualValues(t, 1, community.MemberCount)

	member, err := repo.IsMember(ctx, community.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, member)

	loaded, err := repo.GetByID(ctx, community.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, loaded.MemberCount)
	require.NotNil(t, loaded.Owner)
	assert.Equal(t, "owner", loaded.Owner.Username)
}

func TestCommunityRepository_NameIsCaseInsensitiveUnique(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")

	first := &models.Community{Name: "Golang", OwnerID: &owner.ID}
	require.NoError(t, repo.Create(ctx, first))

	taken, err := repo.NameTaken(ctx, "GOLANG", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.NameTaken(ctx, "golang", first.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	err = repo.Create(ctx, &models.Community{Name: "golang", OwnerID: &owner.ID})
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	var count int64
	require.NoError(t, db.Model(&models.Community{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCommunityRepository_Search(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")

	testutil.CreateCommunity(t, db, owner.ID, "Test Community")
	other := testutil.CreateCommunity(t, db, owner.ID, "Cooking")
	other.Description = "recipes for testing kitchens"
	require.NoError(t, db.Save(other).Error)
	testutil.CreateCommunity(t, db, owner.ID, "100% Rust")

	results, err := repo.Search(ctx, "test")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = repo.Search(ctx, "testing")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Cooking", results[0].Name)

	results, err = repo.Search(ctx, "0%")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "100% Rust", results[0].Name)
}

func TestCommunityRepository_TrendingAndMembership(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	u1 := testutil.CreateUser(t, db, "u1")
	u2 := testutil.CreateUser(t, db, "u2")

	small := testutil.CreateCommunity(t, db, owner.ID, "Small")
	big := testutil.CreateCommunity(t, db, owner.ID, "Big")

	require.NoError(t, repo.AddMember(ctx, big.ID, u1.ID, models.MembershipRoleMember))
	require.NoError(t, repo.AddMember(ctx, big.ID, u2.ID, models.MembershipRoleMember))

	err := repo.AddMember(ctx, big.ID, u1.ID, models.MembershipRoleMember)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	err = repo.AddMember(ctx, 999, u1.ID, models.MembershipRoleMember)
	assert.True(t, models.IsNotFound(err))

	trending, err := repo.Trending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, big.ID, trending[0].ID)
	assert.EqualValues(t, 3, trending[0].MemberCount)
	assert.Equal(t, small.ID, trending[1].ID)

	members, err := repo.Members(ctx, big.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "owner", members[0].User.Username)

	mine, err := repo.ListByMember(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Big", mine[0].Name)

	require.NoError(t, repo.RemoveMember(ctx, big.ID, u1.ID))
	err = repo.RemoveMember(ctx, big.ID, u1.ID)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestCommunityRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")

	community := testutil.CreateCommunity(t, db, owner.ID, "Doomed")
	keep := testutil.CreateCommunity(t, db, owner.ID, "Kept")
	post := testutil.CreatePost(t, db, owner.ID, community.ID, "bye")
	kept := testutil.CreatePost(t, db, owner.ID, keep.ID, "stay")
	comment := testutil.CreateComment(t, db, post.ID, owner.ID, nil, "c")
	testutil.CreateComment(t, db, kept.ID, owner.ID, nil, "stays")
	require.NoError(t, db.Create(&models.PostLike{UserID: owner.ID, PostID: post.ID}).Error)
	require.NoError(t, db.Create(&models.CommentLike{UserID: owner.ID, CommentID: comment.ID}).Error)

	require.NoError(t, repo.Delete(ctx, community.ID))

	for model, want := range map[interface{}]int64{
		&models.Community{}:   1,
		&models.Post{}:        1,
		&models.Comment{}:     1,
		&models.PostLike{}:    0,
		&models.CommentLike{}: 0,
		&models.Membership{}:  1,
	} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Equal(t, want, n, "%T", model)
	}

	err := repo.Delete(ctx, community.ID)
	assert.True(t, models.IsNotFound(err))
}
