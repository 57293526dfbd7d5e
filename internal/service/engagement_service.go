package service

import (
	"context"

	"agora/internal/notifications"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// EngagementService applies likes and shares. Every mutation recomputes the
// affected counter in the transaction that changes the edge set, so the
// counts it returns always match the committed edges.
type EngagementService struct {
	repo   repository.EngagementRepository
	events EventPublisher
}

func NewEngagementService(repo repository.EngagementRepository, events EventPublisher) *EngagementService {
	return &EngagementService{repo: repo, events: events}
}

// LikePost records that userID likes the post. Liking twice changes nothing.
func (s *EngagementService) LikePost(ctx context.Context, postID, userID uint) (count int64, err error) {
	ctx, span := observability.StartSpan(ctx, "engagement.like_post", attribute.Int64("post.id", int64(postID)))
	defer func() { observability.EndSpan(span, err) }()
	if err := requireActor(userID); err != nil {
		return 0, err
	}
	count, created, err := s.repo.LikePost(ctx, postID, userID)
	if err != nil {
		return 0, err
	}
	if created {
		s.emit(ctx, notifications.EventPostLiked, postID, 0, userID, count)
	}
	return count, nil
}

// UnlikePost removes the like if present. Unliking a post that was never
// liked is not an error.
func (s *EngagementService) UnlikePost(ctx context.Context, postID, userID uint) (count int64, err error) {
	ctx, span := observability.StartSpan(ctx, "engagement.unlike_post", attribute.Int64("post.id", int64(postID)))
	defer func() { observability.EndSpan(span, err) }()
	if err := requireActor(userID); err != nil {
		return 0, err
	}
	count, removed, err := s.repo.UnlikePost(ctx, postID, userID)
	if err != nil {
		return 0, err
	}
	if removed {
		s.emit(ctx, notifications.EventPostUnliked, postID, 0, userID, count)
	}
	return count, nil
}

// ToggleLikePost likes the post, or removes the like when one exists.
// liked reports the state after the call.
func (s *EngagementService) ToggleLikePost(ctx context.Context, postID, userID uint) (liked bool, count int64, err error) {
	ctx, span := observability.StartSpan(ctx, "engagement.toggle_post_like", attribute.Int64("post.id", int64(postID)))
	defer func() { observability.EndSpan(span, err) }()
	if err := requireActor(userID); err != nil {
		return false, 0, err
	}
	liked, count, err = s.repo.ToggleLikePost(ctx, postID, userID)
	if err != nil {
		return false, 0, err
	}
	typ := notifications.EventPostUnliked
	if liked {
		typ = notifications.EventPostLiked
	}
	s.emit(ctx, typ, postID, 0, userID, count)
	return liked, count, nil
}

// SharePost increments the share counter. Shares are not deduplicated and
// need no authenticated actor; actorID is only reported in the event.
func (s *EngagementService) SharePost(ctx context.Context, postID, actorID uint) (count int64, err error) {
	ctx, span := observability.StartSpan(ctx, "engagement.share_post", attribute.Int64("post.id", int64(postID)))
	defer func() { observability.EndSpan(span, err) }()
	count, err = s.repo.SharePost(ctx, postID)
	if err != nil {
		return 0, err
	}
	s.emit(ctx, notifications.EventPostShared, postID, 0, actorID, count)
	return count, nil
}

func (s *EngagementService) LikeComment(ctx context.Context, postID, commentID, userID uint) (count int64, err error) {
	ctx, span := observability.StartSpan(ctx, "engagement.like_comment", attribute.Int64("post.id", int64(postID)), attribute.Int64("comment.id", int64(commentID)))
	defer func() { observability.EndSpan(span, err) }()
	if err := requireActor(userID); err != nil {
		return 0, err
	}
	count, created, err := s.repo.LikeComment(ctx, postID, commentID, userID)
	if err != nil {
		return 0, err
	}
	if created {
		s.emit(ctx, notifications.EventCommentLiked, postID, commentID, userID, count)
	}
	return count, nil
}

func (s *EngagementService) UnlikeComment(ctx context.Context, postID, commentID, userID uint) (count int64, err error) {
	ctx, span := observability.StartSpan(ctx, "engagement.unlike_comment", attribute.Int64("post.id", int64(postID)), attribute.Int64("comment.id", int64(commentID)))
	defer func() { observability.EndSpan(span, err) }()
	if err := requireActor(userID); err != nil {
		return 0, err
	}
	count, removed, err := s.repo.UnlikeComment(ctx, postID, commentID, userID)
	if err != nil {
		return 0, err
	}
	if removed {
		s.emit(ctx, notifications.EventCommentUnliked, postID, commentID, userID, count)
	}
	return count, nil
}

// LikedPosts reports which of postIDs viewerID likes. An anonymous viewer
// likes nothing.
func (s *EngagementService) LikedPosts(ctx context.Context, viewerID uint, postIDs []uint) (map[uint]bool, error) {
	return s.repo.LikedPostIDs(ctx, viewerID, postIDs)
}

// LikedComments is LikedPosts for comments.
func (s *EngagementService) LikedComments(ctx context.Context, viewerID uint, commentIDs []uint) (map[uint]bool, error) {
	return s.repo.LikedCommentIDs(ctx, viewerID, commentIDs)
}

func (s *EngagementService) emit(ctx context.Context, typ notifications.EventType, postID, commentID, actorID uint, count int64) {
	publish(ctx, s.events, notifications.Event{
		Type:      typ,
		PostID:    postID,
		CommentID: commentID,
		ActorID:   actorID,
		Count:     count,
	})
}
