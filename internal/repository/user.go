package repository

import (
	"context"
	"errors"
	"log/slog"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, limit, offset int) ([]models.User, int64, error)
	Sample(ctx context.Context, excludeID uint, n int) ([]models.User, error)
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			return wrapRead(err, "User", id)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail matches case-insensitively and returns nil, nil when no user
// has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER(?)", email)
}

// GetByUsername returns nil, nil when the username is unknown.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

// findOne treats a missing row as a normal outcome, for login and
// registration checks that branch on existence.
func (r *userRepository) findOne(ctx context.Context, cond string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(cond, arg).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("username", "A user with that username or email already exists.")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, slog.Any("id", user.ID), slog.Any("username", user.Username))
	return nil
}

// Update persists profile fields. Username and password are not touched here.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(user).
		Select("FirstName", "LastName", "Email").
		Updates(user).Error
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("email", "A user with that email already exists.")
		}
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Limit(clampLimit(limit, 20, 100)).
		Offset(max(offset, 0)).
		Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

// Sample returns up to n users in random order, never including excludeID.
func (r *userRepository) Sample(ctx context.Context, excludeID uint, n int) ([]models.User, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var users []models.User
	if err := q.Order(randomOrder(r.db)).Limit(n).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
