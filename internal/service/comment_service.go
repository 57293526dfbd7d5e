package service

import (
	"context"
	"log/slog"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/repository"
	"agora/internal/validation"
)

// MaxThreadDepth caps how many levels of a comment tree are materialised.
// Comments on the deepest level are returned without their replies.
const MaxThreadDepth = 32

// CommentNode is a comment with its direct replies, newest first.
type CommentNode struct {
	Comment *models.Comment
	Replies []*CommentNode
}

// CommentThread is the comment listing of one post.
type CommentThread struct {
	PostID       uint
	PostTitle    string
	CommentCount int64
	Comments     []*CommentNode
}

type CommentService struct {
	commentRepo    repository.CommentRepository
	postRepo       repository.PostRepository
	engagementRepo repository.EngagementRepository
	events         EventPublisher
}

type CreateCommentInput struct {
	AuthorID uint
	PostID   uint
	ParentID *uint
	Content  string
}

type UpdateCommentInput struct {
	UserID    uint
	PostID    uint
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	UserID    uint
	PostID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	engagementRepo repository.EngagementRepository,
	events EventPublisher,
) *CommentService {
	return &CommentService{
		commentRepo:    commentRepo,
		postRepo:       postRepo,
		engagementRepo: engagementRepo,
		events:         events,
	}
}

// CreateComment adds a comment or, with ParentID set, a reply. The parent
// must be a comment on the same post.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if err := requireActor(in.AuthorID); err != nil {
		return nil, err
	}
	content, err := validation.RequiredText("content", in.Content, validation.MaxCommentLen)
	if err != nil {
		return nil, fieldError("content", err)
	}

	comment := &models.Comment{
		Content:  content,
		PostID:   in.PostID,
		AuthorID: in.AuthorID,
		ParentID: in.ParentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	publish(ctx, s.events, notifications.Event{
		Type:      notifications.EventCommentCreated,
		PostID:    comment.PostID,
		CommentID: comment.ID,
		ActorID:   in.AuthorID,
	})
	return s.commentRepo.GetByID(ctx, comment.PostID, comment.ID, in.AuthorID)
}

// Thread returns the comments of a post. With flat set every comment is
// listed at the top level with no replies; otherwise only top-level comments
// are listed, each carrying its reply tree.
func (s *CommentService) Thread(ctx context.Context, postID, viewerID uint, flat bool) (*CommentThread, error) {
	post, err := s.postRepo.GetByID(ctx, postID, 0)
	if err != nil {
		return nil, err
	}

	var nodes []*CommentNode
	if flat {
		nodes, err = s.ListAll(ctx, postID, viewerID)
	} else {
		nodes, err = s.ListTopLevel(ctx, postID, viewerID)
	}
	if err != nil {
		return nil, err
	}

	count, err := s.commentRepo.CountByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &CommentThread{
		PostID:       post.ID,
		PostTitle:    post.Title,
		CommentCount: count,
		Comments:     nodes,
	}, nil
}

// ListTopLevel builds the reply forest of a post breadth first, issuing one
// query per depth level.
func (s *CommentService) ListTopLevel(ctx context.Context, postID, viewerID uint) ([]*CommentNode, error) {
	roots, err := s.commentRepo.ListRoots(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	if s.healCommentCounts(ctx, roots) {
		if roots, err = s.commentRepo.ListRoots(ctx, postID, viewerID); err != nil {
			return nil, err
		}
	}

	forest := newNodes(roots)
	frontier := forest
	for depth := 1; depth < MaxThreadDepth && len(frontier) > 0; depth++ {
		byID := make(map[uint]*CommentNode, len(frontier))
		parentIDs := make([]uint, len(frontier))
		for i, n := range frontier {
			byID[n.Comment.ID] = n
			parentIDs[i] = n.Comment.ID
		}

		children, err := s.commentRepo.ListChildren(ctx, postID, parentIDs, viewerID)
		if err != nil {
			return nil, err
		}
		if s.healCommentCounts(ctx, children) {
			if children, err = s.commentRepo.ListChildren(ctx, postID, parentIDs, viewerID); err != nil {
				return nil, err
			}
		}

		next := newNodes(children)
		for _, child := range next {
			if child.Comment.ParentID == nil {
				continue
			}
			if parent, ok := byID[*child.Comment.ParentID]; ok {
				parent.Replies = append(parent.Replies, child)
			}
		}
		frontier = next
	}
	return forest, nil
}

// ListAll returns every comment of a post newest first, without nesting.
func (s *CommentService) ListAll(ctx context.Context, postID, viewerID uint) ([]*CommentNode, error) {
	comments, err := s.commentRepo.ListByPost(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	if s.healCommentCounts(ctx, comments) {
		if comments, err = s.commentRepo.ListByPost(ctx, postID, viewerID); err != nil {
			return nil, err
		}
	}
	return newNodes(comments), nil
}

func (s *CommentService) GetComment(ctx context.Context, postID, commentID, viewerID uint) (*models.Comment, error) {
	return s.commentRepo.GetByID(ctx, postID, commentID, viewerID)
}

// UpdateComment replaces the content of the caller's own comment.
func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	if err := requireActor(in.UserID); err != nil {
		return nil, err
	}
	comment, err := s.commentRepo.GetByID(ctx, in.PostID, in.CommentID, in.UserID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own comments")
	}

	content, err := validation.RequiredText("content", in.Content, validation.MaxCommentLen)
	if err != nil {
		return nil, fieldError("content", err)
	}
	comment.Content = content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, in.PostID, in.CommentID, in.UserID)
}

// DeleteComment removes a comment and all of its replies. The comment's
// author and the post's author may delete it.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	if err := requireActor(in.UserID); err != nil {
		return err
	}
	comment, err := s.commentRepo.GetByID(ctx, in.PostID, in.CommentID, 0)
	if err != nil {
		return err
	}

	if comment.AuthorID != in.UserID {
		post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
		if err != nil {
			return err
		}
		if post.AuthorID != in.UserID {
			return models.NewForbiddenError("You can only delete your own comments")
		}
	}
	return s.commentRepo.Delete(ctx, comment.ID)
}

// healCommentCounts rewrites drifted like counters of comments and reports
// whether any changed.
func (s *CommentService) healCommentCounts(ctx context.Context, comments []*models.Comment) bool {
	if s.engagementRepo == nil || len(comments) == 0 {
		return false
	}
	ids := make([]uint, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	repaired, err := s.engagementRepo.ReconcileCommentCounts(ctx, ids)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "comment counter reconciliation failed", slog.String("error", err.Error()))
		return false
	}
	return repaired > 0
}

func newNodes(comments []*models.Comment) []*CommentNode {
	nodes := make([]*CommentNode, len(comments))
	for i, c := range comments {
		nodes[i] = &CommentNode{Comment: c, Replies: []*CommentNode{}}
	}
	return nodes
}
