package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"agora/internal/cache"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"
)

const maxImageURLLen = 512

type PostService struct {
	postRepo       repository.PostRepository
	userRepo       repository.UserRepository
	communityRepo  repository.CommunityRepository
	engagementRepo repository.EngagementRepository
}

type CreatePostInput struct {
	AuthorID    uint
	CommunityID uint
	Title       string
	Content     string
	ImageURL    string
}

type ListPostsInput struct {
	CommunityID uint
	Sort        string
	Limit       int
	Offset      int
	ViewerID    uint
}

// UpdatePostInput carries optional changes. Nil fields are left as is.
type UpdatePostInput struct {
	UserID   uint
	PostID   uint
	Title    *string
	Content  *string
	ImageURL *string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// postPage is the cached shape of an anonymous post listing.
type postPage struct {
	Posts []*models.Post `json:"posts"`
	Total int64          `json:"total"`
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	communityRepo repository.CommunityRepository,
	engagementRepo repository.EngagementRepository,
) *PostService {
	return &PostService{
		postRepo:       postRepo,
		userRepo:       userRepo,
		communityRepo:  communityRepo,
		engagementRepo: engagementRepo,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := requireActor(in.AuthorID); err != nil {
		return nil, err
	}
	title, err := validation.RequiredText("title", in.Title, validation.MaxPostTitleLen)
	if err != nil {
		return nil, fieldError("title", err)
	}
	content, err := validation.RequiredText("content", in.Content, validation.MaxPostContentLen)
	if err != nil {
		return nil, fieldError("content", err)
	}
	if in.CommunityID == 0 {
		return nil, models.NewFieldValidationError("community_id", "community_id is required")
	}
	imageURL, err := normalizeImageURL(in.ImageURL)
	if err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByID(ctx, in.AuthorID); err != nil {
		if models.IsNotFound(err) {
			return nil, errNoActor()
		}
		return nil, err
	}

	post := &models.Post{
		Title:       title,
		Content:     content,
		ImageURL:    imageURL,
		AuthorID:    in.AuthorID,
		CommunityID: in.CommunityID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, in.AuthorID)
}

func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, viewerID)
}

// ListPosts pages through posts. Anonymous listings are cached per filter and
// page. Counters that drifted from their like edges are repaired before the
// page is returned.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, int64, error) {
	sort, err := normalizeSort(in.Sort)
	if err != nil {
		return nil, 0, err
	}
	q := repository.PostQuery{
		CommunityID: in.CommunityID,
		Sort:        sort,
		Limit:       in.Limit,
		Offset:      in.Offset,
		ViewerID:    in.ViewerID,
	}

	if in.ViewerID != 0 {
		return s.listHealed(ctx, q)
	}

	var page postPage
	variant := fmt.Sprintf("c%d:%s:%d:%d", q.CommunityID, q.Sort, q.Limit, q.Offset)
	err = cache.Aside(ctx, cache.PostsListKey(ctx, variant), &page, cache.ListTTL, func() error {
		posts, total, err := s.listHealed(ctx, q)
		if err != nil {
			return err
		}
		page = postPage{Posts: posts, Total: total}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Posts, page.Total, nil
}

// ListCommunityPosts lists a community's posts newest first.
func (s *PostService) ListCommunityPosts(ctx context.Context, communityID uint, in ListPostsInput) ([]*models.Post, int64, error) {
	if _, err := s.communityRepo.GetByID(ctx, communityID); err != nil {
		return nil, 0, err
	}
	in.CommunityID = communityID
	in.Sort = repository.SortLatest
	return s.ListPosts(ctx, in)
}

// listHealed lists one page and, if reconciliation rewrote any counter on it,
// lists it again so the response carries the repaired values.
func (s *PostService) listHealed(ctx context.Context, q repository.PostQuery) ([]*models.Post, int64, error) {
	posts, total, err := s.postRepo.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	if s.engagementRepo == nil || len(posts) == 0 {
		return posts, total, nil
	}

	repaired, err := s.engagementRepo.ReconcilePostCounts(ctx, postIDs(posts))
	if err != nil {
		middleware.Logger.WarnContext(ctx, "post counter reconciliation failed", slog.String("error", err.Error()))
		return posts, total, nil
	}
	if repaired == 0 {
		return posts, total, nil
	}
	return s.postRepo.List(ctx, q)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if err := requireActor(in.UserID); err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own posts")
	}

	if in.Title != nil {
		v, err := validation.RequiredText("title", *in.Title, validation.MaxPostTitleLen)
		if err != nil {
			return nil, fieldError("title", err)
		}
		post.Title = v
	}
	if in.Content != nil {
		v, err := validation.RequiredText("content", *in.Content, validation.MaxPostContentLen)
		if err != nil {
			return nil, fieldError("content", err)
		}
		post.Content = v
	}
	if in.ImageURL != nil {
		v, err := normalizeImageURL(*in.ImageURL)
		if err != nil {
			return nil, err
		}
		post.ImageURL = v
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// DeletePost removes a post. Its author and the owner of its community may
// delete it.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	if err := requireActor(in.UserID); err != nil {
		return err
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}

	if post.AuthorID != in.UserID {
		community, err := s.communityRepo.GetByID(ctx, post.CommunityID)
		if err != nil {
			return err
		}
		if !ownsCommunity(community, in.UserID) {
			return models.NewForbiddenError("You can only delete your own posts")
		}
	}
	return s.postRepo.Delete(ctx, in.PostID)
}

func normalizeSort(sort string) (string, error) {
	switch sort {
	case "", repository.SortLatest:
		return repository.SortLatest, nil
	case repository.SortTrending:
		return repository.SortTrending, nil
	default:
		return "", models.NewFieldValidationError("sort", "sort must be one of: latest, trending")
	}
}

func normalizeImageURL(raw string) (string, error) {
	v, err := validation.OptionalText("image_url", raw, maxImageURLLen)
	if err != nil {
		return "", fieldError("image_url", err)
	}
	if v == "" {
		return "", nil
	}
	if _, err := url.ParseRequestURI(v); err != nil {
		return "", models.NewFieldValidationError("image_url", "image_url must be a valid URL")
	}
	return v, nil
}

func postIDs(posts []*models.Post) []uint {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}
