package repository

import (
	"context"
	"log/slog"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/observability"

	"gorm.io/gorm"
)

// Post list orderings.
const (
	SortLatest   = "latest"
	SortTrending = "trending"
)

// PostQuery filters and pages a post listing. Zero-valued filters are ignored.
type PostQuery struct {
	CommunityID uint
	AuthorID    uint
	// MemberID restricts the listing to communities the user belongs to.
	MemberID uint
	Sort     string
	Limit    int
	Offset   int
	ViewerID uint
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	List(ctx context.Context, q PostQuery) ([]*models.Post, int64, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

// Create inserts the post after resolving its community in the same transaction.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var community models.Community
		if err := tx.Select("id").First(&community, post.CommunityID).Error; err != nil {
			if models.IsNotFound(wrapRead(err, "Community", post.CommunityID)) {
				return models.NewFieldValidationError("community_id", "Invalid community_id")
			}
			return err
		}
		return tx.Omit("Author", "Community").Create(post).Error
	})
	if err != nil {
		return wrapWrite(r.log, r.db.WithContext(ctx), err, "create")
	}

	r.log.LogCreate(ctx, slog.Any("id", post.ID), slog.Any("community_id", post.CommunityID))
	cache.InvalidatePostsList(ctx)
	return nil
}

// GetByID loads a post with author, community and computed columns. Anonymous
// reads go through the cache; viewer-specific reads do not.
func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	fetch := func() error {
		err := r.applyPostDetails(r.db.WithContext(ctx), viewerID).
			Preload("Author").
			Preload("Community").
			Where("posts.id = ?", id).
			First(&post).Error
		if err != nil {
			return wrapRead(err, "Post", id)
		}
		return nil
	}

	var err error
	if viewerID == 0 {
		err = cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, q PostQuery) ([]*models.Post, int64, error) {
	filtered := r.applyFilters(r.db.WithContext(ctx).Model(&models.Post{}), q)

	var total int64
	if err := filtered.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []*models.Post
	base := r.applyFilters(r.applyPostDetails(r.db.WithContext(ctx), q.ViewerID), q).
		Preload("Author").
		Preload("Community")
	err := r.applySort(base, q.Sort).
		Limit(clampLimit(q.Limit, 20, 100)).
		Offset(max(q.Offset, 0)).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *postRepository) applyFilters(db *gorm.DB, q PostQuery) *gorm.DB {
	if q.CommunityID != 0 {
		db = db.Where("posts.community_id = ?", q.CommunityID)
	}
	if q.AuthorID != 0 {
		db = db.Where("posts.author_id = ?", q.AuthorID)
	}
	if q.MemberID != 0 {
		db = db.Where("posts.community_id IN (?)",
			r.db.Model(&models.Membership{}).Select("community_id").Where("user_id = ?", q.MemberID))
	}
	return db
}

// applySort appends the ORDER BY clause for the requested sort. Every ordering
// ends on id so pages are stable when timestamps tie.
func (r *postRepository) applySort(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case SortTrending:
		return db.Order("posts.likes_count DESC, posts.share_count DESC, posts.created_at DESC, posts.id DESC")
	default:
		return db.Order("posts.created_at DESC, posts.id DESC")
	}
}

// applyPostDetails adds subqueries to fetch the comment count and liked status in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM post_likes WHERE post_likes.post_id = posts.id AND post_likes.user_id = ?) AS liked", viewerID)
	}
	return db.Select(selectQuery + ", false AS liked")
}

// Update persists the editable fields of a post.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Model(post).
		Select("Title", "Content", "ImageURL").
		Updates(post).Error; err != nil {
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, post.ID)
	cache.InvalidatePostsList(ctx)
	return nil
}

// Delete removes the post with its likes, comments and comment likes in one transaction.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	var comments int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := forUpdate(tx).Select("id").First(&post, id).Error; err != nil {
			return wrapRead(err, "Post", id)
		}

		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		res := tx.Where("post_id = ?", id).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		comments = res.RowsAffected
		if err := tx.Where("post_id = ?", id).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return wrapWrite(r.log, r.db.WithContext(ctx), err, "delete")
	}

	r.log.LogDelete(ctx, slog.Any("id", id), slog.Any("comments", comments))
	cache.InvalidatePost(ctx, id)
	cache.InvalidatePostsList(ctx)
	return nil
}
