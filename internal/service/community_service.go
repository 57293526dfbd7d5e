package service

import (
	"context"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"
)

const duplicateCommunityName = "A community with this name already exists."

type CommunityService struct {
	communityRepo repository.CommunityRepository
}

type CreateCommunityInput struct {
	OwnerID     uint
	Name        string
	Description string
}

// UpdateCommunityInput carries optional changes. Nil fields are left as is.
type UpdateCommunityInput struct {
	UserID      uint
	CommunityID uint
	Name        *string
	Description *string
}

func NewCommunityService(communityRepo repository.CommunityRepository) *CommunityService {
	return &CommunityService{communityRepo: communityRepo}
}

// CreateCommunity stores a community owned by the caller, who becomes its
// first member. Names are unique ignoring case and surrounding whitespace.
func (s *CommunityService) CreateCommunity(ctx context.Context, in CreateCommunityInput) (*models.Community, error) {
	if err := requireActor(in.OwnerID); err != nil {
		return nil, err
	}
	name, err := validation.RequiredText("name", in.Name, validation.MaxCommunityNameLen)
	if err != nil {
		return nil, fieldError("name", err)
	}

	taken, err := s.communityRepo.NameTaken(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewConflictError("name", duplicateCommunityName)
	}

	ownerID := in.OwnerID
	community := &models.Community{
		Name:        name,
		Description: in.Description,
		OwnerID:     &ownerID,
	}
	if err := s.communityRepo.Create(ctx, community); err != nil {
		return nil, err
	}
	return s.communityRepo.GetByID(ctx, community.ID)
}

func (s *CommunityService) GetCommunity(ctx context.Context, id uint) (*models.Community, error) {
	return s.communityRepo.GetByID(ctx, id)
}

func (s *CommunityService) ListCommunities(ctx context.Context, limit, offset int) ([]*models.Community, int64, error) {
	return s.communityRepo.List(ctx, limit, offset)
}

func (s *CommunityService) UpdateCommunity(ctx context.Context, in UpdateCommunityInput) (*models.Community, error) {
	if err := requireActor(in.UserID); err != nil {
		return nil, err
	}
	community, err := s.communityRepo.GetByID(ctx, in.CommunityID)
	if err != nil {
		return nil, err
	}
	if !ownsCommunity(community, in.UserID) {
		return nil, models.NewForbiddenError("You can only update communities you own")
	}

	if in.Name != nil {
		name, err := validation.RequiredText("name", *in.Name, validation.MaxCommunityNameLen)
		if err != nil {
			return nil, fieldError("name", err)
		}
		taken, err := s.communityRepo.NameTaken(ctx, name, community.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.NewConflictError("name", duplicateCommunityName)
		}
		community.Name = name
	}
	if in.Description != nil {
		community.Description = *in.Description
	}

	if err := s.communityRepo.Update(ctx, community); err != nil {
		return nil, err
	}
	return s.communityRepo.GetByID(ctx, community.ID)
}

// DeleteCommunity removes the community with its memberships, posts and
// everything hanging off them.
func (s *CommunityService) DeleteCommunity(ctx context.Context, userID, communityID uint) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	community, err := s.communityRepo.GetByID(ctx, communityID)
	if err != nil {
		return err
	}
	if !ownsCommunity(community, userID) {
		return models.NewForbiddenError("You can only delete communities you own")
	}
	return s.communityRepo.Delete(ctx, communityID)
}

// Join adds the caller as a member. Joining twice fails with "Already a member".
func (s *CommunityService) Join(ctx context.Context, communityID, userID uint) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	return s.communityRepo.AddMember(ctx, communityID, userID, models.MembershipRoleMember)
}

// Leave removes the caller's membership. Leaving without being a member fails
// with "Not a member".
func (s *CommunityService) Leave(ctx context.Context, communityID, userID uint) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	if _, err := s.communityRepo.GetByID(ctx, communityID); err != nil {
		return err
	}
	return s.communityRepo.RemoveMember(ctx, communityID, userID)
}

func (s *CommunityService) Members(ctx context.Context, communityID uint) ([]models.Membership, error) {
	if _, err := s.communityRepo.GetByID(ctx, communityID); err != nil {
		return nil, err
	}
	return s.communityRepo.Members(ctx, communityID)
}

// UserCommunities lists the communities userID belongs to.
func (s *CommunityService) UserCommunities(ctx context.Context, userID uint) ([]*models.Community, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	return s.communityRepo.ListByMember(ctx, userID)
}

func ownsCommunity(c *models.Community, userID uint) bool {
	return c.OwnerID != nil && *c.OwnerID == userID
}
