package repository

import (
	"context"
	"log/slog"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, postID, id, viewerID uint) (*models.Comment, error)
	ListRoots(ctx context.Context, postID, viewerID uint) ([]*models.Comment, error)
	ListChildren(ctx context.Context, postID uint, parentIDs []uint, viewerID uint) ([]*models.Comment, error)
	ListByPost(ctx context.Context, postID, viewerID uint) ([]*models.Comment, error)
	CountByPost(ctx context.Context, postID uint) (int64, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("comments")}
}

// Create inserts a comment. The post and the optional parent are resolved in
// the same transaction, and a parent on another post is rejected.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, comment.PostID).Error; err != nil {
			return wrapRead(err, "Post", comment.PostID)
		}

		if comment.ParentID != nil {
			var parent models.Comment
			if err := tx.Select("id", "post_id").First(&parent, *comment.ParentID).Error; err != nil {
				if models.IsNotFound(wrapRead(err, "Comment", *comment.ParentID)) {
					return models.NewFieldValidationError("parent", "Invalid parent comment")
				}
				return err
			}
			if parent.PostID != comment.PostID {
				return models.NewFieldValidationError("parent", "Parent comment must belong to the same post")
			}
		}

		return tx.Omit("Author").Create(comment).Error
	})
	if err != nil {
		return wrapWrite(r.log, r.db.WithContext(ctx), err, "create")
	}

	r.log.LogCreate(ctx, slog.Any("id", comment.ID), slog.Any("post_id", comment.PostID))
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}

// GetByID loads a comment that belongs to postID.
func (r *commentRepository) GetByID(ctx context.Context, postID, id, viewerID uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.applyCommentDetails(r.db.WithContext(ctx), viewerID).
		Preload("Author").
		Where("comments.id = ? AND comments.post_id = ?", id, postID).
		First(&comment).Error
	if err != nil {
		return nil, wrapRead(err, "Comment", id)
	}
	return &comment, nil
}

// ListRoots returns the top-level comments of a post, newest first.
func (r *commentRepository) ListRoots(ctx context.Context, postID, viewerID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.applyCommentDetails(r.db.WithContext(ctx), viewerID).
		Preload("Author").
		Where("comments.post_id = ? AND comments.parent_id IS NULL", postID).
		Order("comments.created_at DESC, comments.id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

// ListChildren returns the direct replies to any of parentIDs, newest first.
func (r *commentRepository) ListChildren(ctx context.Context, postID uint, parentIDs []uint, viewerID uint) ([]*models.Comment, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var comments []*models.Comment
	err := r.applyCommentDetails(r.db.WithContext(ctx), viewerID).
		Preload("Author").
		Where("comments.post_id = ? AND comments.parent_id IN ?", postID, parentIDs).
		Order("comments.created_at DESC, comments.id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

// ListByPost returns every comment on a post regardless of depth, newest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID, viewerID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.applyCommentDetails(r.db.WithContext(ctx), viewerID).
		Preload("Author").
		Where("comments.post_id = ?", postID).
		Order("comments.created_at DESC, comments.id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *commentRepository) applyCommentDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	if viewerID != 0 {
		return db.Select("comments.*, EXISTS(SELECT 1 FROM comment_likes WHERE comment_likes.comment_id = comments.id AND comment_likes.user_id = ?) AS liked", viewerID)
	}
	return db.Select("comments.*, false AS liked")
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Model(comment).Select("Content").Updates(comment).Error; err != nil {
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes a comment, its replies at every depth and their likes.
func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	var postID uint
	var removed int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.Comment
		if err := tx.Select("id", "post_id").First(&root, id).Error; err != nil {
			return wrapRead(err, "Comment", id)
		}
		postID = root.PostID

		ids := []uint{root.ID}
		frontier := []uint{root.ID}
		for len(frontier) > 0 {
			var next []uint
			if err := tx.Model(&models.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &next).Error; err != nil {
				return err
			}
			ids = append(ids, next...)
			frontier = next
		}
		removed = len(ids)

		if err := tx.Where("comment_id IN ?", ids).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error
	})
	if err != nil {
		return wrapWrite(r.log, r.db.WithContext(ctx), err, "delete")
	}

	r.log.LogDelete(ctx, slog.Any("id", id), slog.Any("post_id", postID), slog.Any("comments", removed))
	cache.InvalidatePost(ctx, postID)
	return nil
}
