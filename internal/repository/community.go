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

// CommunityRepository defines persistence operations for communities and
// their membership edges.
type CommunityRepository interface {
	Create(ctx context.Context, community *models.Community) error
	GetByID(ctx context.Context, id uint) (*models.Community, error)
	NameTaken(ctx context.Context, name string, excludeID uint) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*models.Community, int64, error)
	Update(ctx context.Context, community *models.Community) error
	Delete(ctx context.Context, id uint) error
	Trending(ctx context.Context, limit int) ([]*models.Community, error)
	Search(ctx context.Context, query string) ([]*models.Community, error)
	ListByMember(ctx context.Context, userID uint) ([]*models.Community, error)

	AddMember(ctx context.Context, communityID, userID uint, role models.MembershipRole) error
	RemoveMember(ctx context.Context, communityID, userID uint) error
	IsMember(ctx context.Context, communityID, userID uint) (bool, error)
	Members(ctx context.Context, communityID uint) ([]models.Membership, error)
}

type communityRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommunityRepository returns a new CommunityRepository implementation.
func NewCommunityRepository(db *gorm.DB) CommunityRepository {
	return &communityRepository{db: db, log: observability.NewRepoLogger("communities")}
}

const memberCountColumn = "communities.*, (SELECT COUNT(*) FROM memberships WHERE memberships.community_id = communities.id) AS member_count"

func (r *communityRepository) withCounts(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Select(memberCountColumn).
		Preload("Owner")
}

// Create inserts the community and, when it has an owner, the owner's
// membership in the same transaction.
func (r *communityRepository) Create(ctx context.Context, community *models.Community) error {
	community.NameKey = models.CommunityNameKey(community.Name)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Owner").Create(community).Error; err != nil {
			return err
		}
		if community.OwnerID == nil {
			return nil
		}
		return tx.Create(&models.Membership{
			UserID:      *community.OwnerID,
			CommunityID: community.ID,
			Role:        models.MembershipRoleOwner,
		}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("name", "A community with this name already exists.")
		}
		return wrapWrite(r.log, r.db.WithContext(ctx), err, "create")
	}

	if community.OwnerID != nil {
		community.MemberCount = 1
	}
	r.log.LogCreate(ctx, slog.Any("id", community.ID), slog.Any("name", community.Name))
	cache.Invalidate(ctx, cache.TrendingKey("communities", 10))
	return nil
}

func (r *communityRepository) GetByID(ctx context.Context, id uint) (*models.Community, error) {
	var community models.Community
	err := cache.Aside(ctx, cache.CommunityKey(id), &community, cache.CommunityTTL, func() error {
		if err := r.withCounts(ctx).Where("communities.id = ?", id).First(&community).Error; err != nil {
			return wrapRead(err, "Community", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &community, nil
}

// NameTaken reports whether another community already uses name, compared
// case-insensitively. excludeID lets an update keep its own name.
func (r *communityRepository) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Community{}).Where("name_key = ?", models.CommunityNameKey(name))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *communityRepository) List(ctx context.Context, limit, offset int) ([]*models.Community, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Community{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var communities []*models.Community
	if err := r.withCounts(ctx).
		Order("communities.created_at DESC, communities.id DESC").
		Limit(clampLimit(limit, 20, 100)).
		Offset(max(offset, 0)).
		Find(&communities).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return communities, total, nil
}

func (r *communityRepository) Update(ctx context.Context, community *models.Community) error {
	community.NameKey = models.CommunityNameKey(community.Name)
	err := r.db.WithContext(ctx).Model(community).
		Select("Name", "NameKey", "Description").
		Updates(community).Error
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("name", "A community with this name already exists.")
		}
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	cache.InvalidateCommunity(ctx, community.ID)
	return nil
}

// Delete removes the community with its memberships, posts, post likes,
// comments and comment likes in one transaction.
func (r *communityRepository) Delete(ctx context.Context, id uint) error {
	var removed struct{ posts, comments, memberships int64 }

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var community models.Community
		if err := forUpdate(tx).Select("id").First(&community, id).Error; err != nil {
			return wrapRead(err, "Community", id)
		}

		postIDs := tx.Model(&models.Post{}).Select("id").Where("community_id = ?", id)
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id IN (?)", postIDs)

		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		res := tx.Where("post_id IN (?)", postIDs).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		removed.comments = res.RowsAffected
		if err := tx.Where("post_id IN (?)", postIDs).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		res = tx.Where("community_id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		removed.posts = res.RowsAffected
		res = tx.Where("community_id = ?", id).Delete(&models.Membership{})
		if res.Error != nil {
			return res.Error
		}
		removed.memberships = res.RowsAffected
		return tx.Delete(&models.Community{}, id).Error
	})
	if err != nil {
		return wrapWrite(r.log, r.db.WithContext(ctx), err, "delete")
	}

	r.log.LogDelete(ctx,
		slog.Any("id", id),
		slog.Any("posts", removed.posts),
		slog.Any("comments", removed.comments),
		slog.Any("memberships", removed.memberships),
	)
	cache.InvalidateCommunity(ctx, id)
	cache.InvalidatePostsList(ctx)
	return nil
}

// Trending orders communities by member count, ties broken by id.
func (r *communityRepository) Trending(ctx context.Context, limit int) ([]*models.Community, error) {
	var communities []*models.Community
	if err := r.withCounts(ctx).
		Order("member_count DESC").
		Order("communities.id ASC").
		Limit(clampLimit(limit, 10, 100)).
		Find(&communities).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return communities, nil
}

// Search matches query as a case-insensitive substring of name or description.
func (r *communityRepository) Search(ctx context.Context, query string) ([]*models.Community, error) {
	pattern := containsPattern(query)
	var communities []*models.Community
	if err := r.withCounts(ctx).
		Where("LOWER(communities.name) LIKE ? ESCAPE '"+likeEscape+"' OR LOWER(communities.description) LIKE ? ESCAPE '"+likeEscape+"'", pattern, pattern).
		Order("communities.name ASC").
		Find(&communities).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return communities, nil
}

func (r *communityRepository) ListByMember(ctx context.Context, userID uint) ([]*models.Community, error) {
	var communities []*models.Community
	if err := r.withCounts(ctx).
		Joins("JOIN memberships m ON m.community_id = communities.id AND m.user_id = ?", userID).
		Order("m.joined_at DESC").
		Find(&communities).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return communities, nil
}

func (r *communityRepository) AddMember(ctx context.Context, communityID, userID uint, role models.MembershipRole) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var community models.Community
		if err := tx.Select("id").First(&community, communityID).Error; err != nil {
			return wrapRead(err, "Community", communityID)
		}
		return tx.Create(&models.Membership{UserID: userID, CommunityID: communityID, Role: role}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("community", "Already a member")
		}
		return wrapWrite(r.log, r.db.WithContext(ctx), err, "join")
	}
	cache.InvalidateCommunity(ctx, communityID)
	cache.Invalidate(ctx, cache.TrendingKey("communities", 10))
	return nil
}

func (r *communityRepository) RemoveMember(ctx context.Context, communityID, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Delete(&models.Membership{})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "leave")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewValidationError("Not a member")
	}
	cache.InvalidateCommunity(ctx, communityID)
	cache.Invalidate(ctx, cache.TrendingKey("communities", 10))
	return nil
}

func (r *communityRepository) IsMember(ctx context.Context, communityID, userID uint) (bool, error) {
	var m models.Membership
	err := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return true, nil
}

// Members returns the community's memberships with users loaded, oldest first.
func (r *communityRepository) Members(ctx context.Context, communityID uint) ([]models.Membership, error) {
	var members []models.Membership
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("community_id = ?", communityID).
		Order("joined_at ASC, user_id ASC").
		Find(&members).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}
