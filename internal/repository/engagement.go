package repository

import (
	"context"
	"log/slog"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngagementRepository mutates like edges and the counters derived from them.
// Every edge mutation recounts the owning row's counter in the same
// transaction, with that row locked, so a committed counter always equals
// the committed edge count.
type EngagementRepository interface {
	LikePost(ctx context.Context, postID, userID uint) (count int64, created bool, err error)
	UnlikePost(ctx context.Context, postID, userID uint) (count int64, removed bool, err error)
	ToggleLikePost(ctx context.Context, postID, userID uint) (liked bool, count int64, err error)
	SharePost(ctx context.Context, postID uint) (int64, error)
	LikeComment(ctx context.Context, postID, commentID, userID uint) (count int64, created bool, err error)
	UnlikeComment(ctx context.Context, postID, commentID, userID uint) (count int64, removed bool, err error)

	ReconcilePostCounts(ctx context.Context, postIDs []uint) (int64, error)
	ReconcileCommentCounts(ctx context.Context, commentIDs []uint) (int64, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error)
	LikedCommentIDs(ctx context.Context, userID uint, commentIDs []uint) (map[uint]bool, error)
}

type engagementRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewEngagementRepository creates a new engagement repository
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db, log: observability.NewRepoLogger("engagement")}
}

func lockPost(tx *gorm.DB, postID uint) error {
	var post models.Post
	if err := forUpdate(tx).Select("id").First(&post, postID).Error; err != nil {
		return wrapRead(err, "Post", postID)
	}
	return nil
}

func lockComment(tx *gorm.DB, postID, commentID uint) error {
	var comment models.Comment
	err := forUpdate(tx).Select("id").
		Where("id = ? AND post_id = ?", commentID, postID).
		First(&comment).Error
	if err != nil {
		return wrapRead(err, "Comment", commentID)
	}
	return nil
}

// recountPostLikes rewrites likes_count from the edge table and returns it.
func recountPostLikes(tx *gorm.DB, postID uint) (int64, error) {
	edges := tx.Model(&models.PostLike{}).Select("COUNT(*)").Where("post_likes.post_id = posts.id")
	if err := tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn("likes_count", edges).Error; err != nil {
		return 0, err
	}
	var count int64
	err := tx.Model(&models.Post{}).Select("likes_count").Where("id = ?", postID).Row().Scan(&count)
	return count, err
}

func recountCommentLikes(tx *gorm.DB, commentID uint) (int64, error) {
	edges := tx.Model(&models.CommentLike{}).Select("COUNT(*)").Where("comment_likes.comment_id = comments.id")
	if err := tx.Model(&models.Comment{}).Where("id = ?", commentID).UpdateColumn("like_count", edges).Error; err != nil {
		return 0, err
	}
	var count int64
	err := tx.Model(&models.Comment{}).Select("like_count").Where("id = ?", commentID).Row().Scan(&count)
	return count, err
}

// LikePost adds the (user, post) edge if absent. Repeating it is a no-op.
func (r *engagementRepository) LikePost(ctx context.Context, postID, userID uint) (int64, bool, error) {
	var count int64
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostLike{UserID: userID, PostID: postID})
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0

		var err error
		count, err = recountPostLikes(tx, postID)
		return err
	})
	if err != nil {
		return 0, false, wrapWrite(r.log, r.db.WithContext(ctx), err, "like_post")
	}
	cache.InvalidatePost(ctx, postID)
	return count, created, nil
}

// UnlikePost removes the edge if present. A missing edge is not an error.
func (r *engagementRepository) UnlikePost(ctx context.Context, postID, userID uint) (int64, bool, error) {
	var count int64
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0

		var err error
		count, err = recountPostLikes(tx, postID)
		return err
	})
	if err != nil {
		return 0, false, wrapWrite(r.log, r.db.WithContext(ctx), err, "unlike_post")
	}
	cache.InvalidatePost(ctx, postID)
	return count, removed, nil
}

// ToggleLikePost removes the edge when it exists and creates it otherwise.
func (r *engagementRepository) ToggleLikePost(ctx context.Context, postID, userID uint) (bool, int64, error) {
	var liked bool
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.PostLike{UserID: userID, PostID: postID}).Error; err != nil {
				return err
			}
			liked = true
		}

		var err error
		count, err = recountPostLikes(tx, postID)
		return err
	})
	if err != nil {
		return false, 0, wrapWrite(r.log, r.db.WithContext(ctx), err, "toggle_like_post")
	}
	cache.InvalidatePost(ctx, postID)
	return liked, count, nil
}

// SharePost increments share_count atomically and returns the new value.
// Shares are not deduplicated.
func (r *engagementRepository) SharePost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("share_count", gorm.Expr("share_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", postID)
		}
		return tx.Model(&models.Post{}).Select("share_count").Where("id = ?", postID).Row().Scan(&count)
	})
	if err != nil {
		return 0, wrapWrite(r.log, r.db.WithContext(ctx), err, "share_post")
	}
	cache.InvalidatePost(ctx, postID)
	return count, nil
}

// LikeComment adds the (user, comment) edge. The comment must belong to postID.
func (r *engagementRepository) LikeComment(ctx context.Context, postID, commentID, userID uint) (int64, bool, error) {
	var count int64
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockComment(tx, postID, commentID); err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.CommentLike{UserID: userID, CommentID: commentID})
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0

		var err error
		count, err = recountCommentLikes(tx, commentID)
		return err
	})
	if err != nil {
		return 0, false, wrapWrite(r.log, r.db.WithContext(ctx), err, "like_comment")
	}
	return count, created, nil
}

func (r *engagementRepository) UnlikeComment(ctx context.Context, postID, commentID, userID uint) (int64, bool, error) {
	var count int64
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockComment(tx, postID, commentID); err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND comment_id = ?", userID, commentID).Delete(&models.CommentLike{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0

		var err error
		count, err = recountCommentLikes(tx, commentID)
		return err
	})
	if err != nil {
		return 0, false, wrapWrite(r.log, r.db.WithContext(ctx), err, "unlike_comment")
	}
	return count, removed, nil
}

type counterDrift struct {
	ID     uint
	Stored int64
	Actual int64
}

// ReconcilePostCounts rewrites likes_count on the given posts where it
// disagrees with the edge count, and returns how many rows were repaired.
func (r *engagementRepository) ReconcilePostCounts(ctx context.Context, postIDs []uint) (int64, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	var rows []counterDrift
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("posts.id, posts.likes_count AS stored, (SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id) AS actual").
		Where("posts.id IN ?", postIDs).
		Scan(&rows).Error; err != nil {
		return 0, models.NewInternalError(err)
	}

	drifted := driftedIDs(rows)
	if len(drifted) == 0 {
		return 0, nil
	}

	db := r.db.WithContext(ctx)
	edges := db.Model(&models.PostLike{}).Select("COUNT(*)").Where("post_likes.post_id = posts.id")
	if err := db.Model(&models.Post{}).Where("id IN ?", drifted).UpdateColumn("likes_count", edges).Error; err != nil {
		r.log.LogError(ctx, err, "reconcile")
		return 0, models.NewInternalError(err)
	}

	for _, row := range rows {
		if row.Stored != row.Actual {
			r.log.LogRepair(ctx, slog.Any("post_id", row.ID), slog.Any("stored", row.Stored), slog.Any("actual", row.Actual))
			cache.InvalidatePost(ctx, row.ID)
		}
	}
	observability.CounterRepairs.WithLabelValues("post_likes").Add(float64(len(drifted)))
	return int64(len(drifted)), nil
}

// ReconcileCommentCounts is ReconcilePostCounts for comment like_count.
func (r *engagementRepository) ReconcileCommentCounts(ctx context.Context, commentIDs []uint) (int64, error) {
	if len(commentIDs) == 0 {
		return 0, nil
	}
	var rows []counterDrift
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("comments.id, comments.like_count AS stored, (SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id) AS actual").
		Where("comments.id IN ?", commentIDs).
		Scan(&rows).Error; err != nil {
		return 0, models.NewInternalError(err)
	}

	drifted := driftedIDs(rows)
	if len(drifted) == 0 {
		return 0, nil
	}

	db := r.db.WithContext(ctx)
	edges := db.Model(&models.CommentLike{}).Select("COUNT(*)").Where("comment_likes.comment_id = comments.id")
	if err := db.Model(&models.Comment{}).Where("id IN ?", drifted).UpdateColumn("like_count", edges).Error; err != nil {
		r.log.LogError(ctx, err, "reconcile")
		return 0, models.NewInternalError(err)
	}

	for _, row := range rows {
		if row.Stored != row.Actual {
			r.log.LogRepair(ctx, slog.Any("comment_id", row.ID), slog.Any("stored", row.Stored), slog.Any("actual", row.Actual))
		}
	}
	observability.CounterRepairs.WithLabelValues("comment_likes").Add(float64(len(drifted)))
	return int64(len(drifted)), nil
}

func driftedIDs(rows []counterDrift) []uint {
	var ids []uint
	for _, row := range rows {
		if row.Stored != row.Actual {
			ids = append(ids, row.ID)
		}
	}
	return ids
}

// LikedPostIDs returns which of postIDs userID has liked. A zero user likes nothing.
func (r *engagementRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error) {
	liked := make(map[uint]bool)
	if userID == 0 || len(postIDs) == 0 {
		return liked, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

func (r *engagementRepository) LikedCommentIDs(ctx context.Context, userID uint, commentIDs []uint) (map[uint]bool, error) {
	liked := make(map[uint]bool)
	if userID == 0 || len(commentIDs) == 0 {
		return liked, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}
