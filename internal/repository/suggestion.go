package repository

import (
	"context"
	"log/slog"

	"agora/internal/models"
	"agora/internal/observability"

	"gorm.io/gorm"
)

// SuggestionRepository stores user-to-user suggestions.
type SuggestionRepository interface {
	Create(ctx context.Context, suggestion *models.UserSuggestion) error
	ListByUser(ctx context.Context, userID uint) ([]models.UserSuggestion, error)
}

type suggestionRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSuggestionRepository returns a new SuggestionRepository implementation.
func NewSuggestionRepository(db *gorm.DB) SuggestionRepository {
	return &suggestionRepository{db: db, log: observability.NewRepoLogger("user_suggestions")}
}

func (r *suggestionRepository) Create(ctx context.Context, suggestion *models.UserSuggestion) error {
	if err := r.db.WithContext(ctx).Omit("SuggestedUser").Create(suggestion).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("suggested_user_id", "This user has already been suggested.")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, slog.Any("user_id", suggestion.UserID), slog.Any("suggested_user_id", suggestion.SuggestedUserID))
	return nil
}

// ListByUser returns the suggestions stored for userID, newest first.
func (r *suggestionRepository) ListByUser(ctx context.Context, userID uint) ([]models.UserSuggestion, error) {
	var suggestions []models.UserSuggestion
	if err := r.db.WithContext(ctx).
		Preload("SuggestedUser").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&suggestions).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return suggestions, nil
}
