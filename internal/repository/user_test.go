package repository

import (
	"context"
	"regexp"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		wantUsername string
		wantCode     string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "email"}).
					AddRow(1, "testuser", "test@example.com")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			wantUsername: "testuser",
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			wantCode: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, models.ErrorCode(err))
			} else if assert.NotNil(t, user) {
				assert.Equal(t, tt.wantUsername, user.Username)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_Create_UniqueViolationIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Username: "taken", Email: "taken@example.com", Password: "x"})
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_LookupsReturnNilWhenMissing(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	testutil.CreateUser(t, db, "alice")

	user, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, user)

	byEmail, err := repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, user.ID, byEmail.ID)

	missing, err := repo.GetByUsername(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_DuplicateUsernameOnSQLite(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)

	require.NoError(t, repo.Create(context.Background(), &models.User{Username: "bob", Email: "bob@example.com", Password: "x"}))
	err := repo.Create(context.Background(), &models.User{Username: "bob", Email: "other@example.com", Password: "x"})
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
}

func TestUserRepository_ListAndSample(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	var ids []uint
	for _, name := range []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"} {
		ids = append(ids, testutil.CreateUser(t, db, name).ID)
	}

	users, total, err := repo.List(ctx, 3, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	require.Len(t, users, 3)
	assert.Equal(t, "u2", users[0].Username)

	sample, err := repo.Sample(ctx, ids[0], 5)
	require.NoError(t, err)
	assert.Len(t, sample, 5)
	for _, u := range sample {
		assert.NotEqual(t, ids[0], u.ID)
	}
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "carol")
	user.FirstName = "Carol"
	user.Username = "ignored"
	require.NoError(t, repo.Update(ctx, user))

	reloaded, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carol", reloaded.FirstName)
	assert.Equal(t, "carol", reloaded.Username)
}
