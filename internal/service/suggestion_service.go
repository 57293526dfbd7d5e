package service

import (
	"context"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"
)

// SuggestionService stores explicit user-to-user recommendations.
type SuggestionService struct {
	suggestionRepo repository.SuggestionRepository
	userRepo       repository.UserRepository
}

type CreateSuggestionInput struct {
	UserID          uint
	SuggestedUserID uint
	Reason          string
}

func NewSuggestionService(suggestionRepo repository.SuggestionRepository, userRepo repository.UserRepository) *SuggestionService {
	return &SuggestionService{suggestionRepo: suggestionRepo, userRepo: userRepo}
}

func (s *SuggestionService) CreateSuggestion(ctx context.Context, in CreateSuggestionInput) (*models.UserSuggestion, error) {
	if err := requireActor(in.UserID); err != nil {
		return nil, err
	}
	if in.SuggestedUserID == 0 {
		return nil, models.NewFieldValidationError("suggested_user_id", "suggested_user_id is required")
	}
	if in.SuggestedUserID == in.UserID {
		return nil, models.NewFieldValidationError("suggested_user_id", "You cannot suggest yourself.")
	}
	reason, err := validation.OptionalText("reason", in.Reason, validation.MaxSuggestionReason)
	if err != nil {
		return nil, fieldError("reason", err)
	}

	target, err := s.userRepo.GetByID(ctx, in.SuggestedUserID)
	if err != nil {
		return nil, err
	}

	suggestion := &models.UserSuggestion{
		UserID:          in.UserID,
		SuggestedUserID: target.ID,
		Reason:          reason,
	}
	if err := s.suggestionRepo.Create(ctx, suggestion); err != nil {
		return nil, err
	}
	suggestion.SuggestedUser = target
	return suggestion, nil
}

func (s *SuggestionService) ListSuggestions(ctx context.Context, userID uint) ([]models.UserSuggestion, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	return s.suggestionRepo.ListByUser(ctx, userID)
}
