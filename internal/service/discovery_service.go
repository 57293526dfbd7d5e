package service

import (
	"context"
	"strings"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/repository"

	"golang.org/x/sync/errgroup"
)

// TrendingLimit is the size of each trending projection.
const TrendingLimit = 10

// Trending is the combined trending projection.
type Trending struct {
	Communities []*models.Community
	Posts       []*models.Post
}

// DiscoveryService serves the read-only projections: trending, search and
// the member feed.
type DiscoveryService struct {
	communityRepo  repository.CommunityRepository
	postRepo       repository.PostRepository
	engagementRepo repository.EngagementRepository
}

func NewDiscoveryService(
	communityRepo repository.CommunityRepository,
	postRepo repository.PostRepository,
	engagementRepo repository.EngagementRepository,
) *DiscoveryService {
	return &DiscoveryService{
		communityRepo:  communityRepo,
		postRepo:       postRepo,
		engagementRepo: engagementRepo,
	}
}

// TrendingCommunities returns the communities with the most members.
func (s *DiscoveryService) TrendingCommunities(ctx context.Context) ([]*models.Community, error) {
	var communities []*models.Community
	err := cache.Aside(ctx, cache.TrendingKey("communities", TrendingLimit), &communities, cache.ListTTL, func() error {
		var err error
		communities, err = s.communityRepo.Trending(ctx, TrendingLimit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return communities, nil
}

// TrendingPosts returns the most liked posts, then most shared, then newest.
// The projection is cached without viewer state; the viewer's likes are
// applied afterwards.
func (s *DiscoveryService) TrendingPosts(ctx context.Context, viewerID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := cache.Aside(ctx, cache.TrendingKey("posts", TrendingLimit), &posts, cache.ListTTL, func() error {
		var err error
		posts, _, err = s.postRepo.List(ctx, repository.PostQuery{
			Sort:  repository.SortTrending,
			Limit: TrendingLimit,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if viewerID != 0 && len(posts) > 0 {
		liked, err := s.engagementRepo.LikedPostIDs(ctx, viewerID, postIDs(posts))
		if err != nil {
			return nil, err
		}
		for _, p := range posts {
			p.IsLikedByUser = liked[p.ID]
		}
	}
	return posts, nil
}

// Trending computes both trending projections concurrently.
func (s *DiscoveryService) Trending(ctx context.Context, viewerID uint) (*Trending, error) {
	var out Trending
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Communities, err = s.TrendingCommunities(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.Posts, err = s.TrendingPosts(gctx, viewerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchCommunities matches query case-insensitively against community names
// and descriptions. A blank query matches nothing.
func (s *DiscoveryService) SearchCommunities(ctx context.Context, query string) ([]*models.Community, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*models.Community{}, nil
	}
	return s.communityRepo.Search(ctx, query)
}

// Feed lists posts from the communities userID belongs to, newest first.
func (s *DiscoveryService) Feed(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, int64, error) {
	if err := requireActor(userID); err != nil {
		return nil, 0, err
	}
	return s.postRepo.List(ctx, repository.PostQuery{
		MemberID: userID,
		Sort:     repository.SortLatest,
		Limit:    limit,
		Offset:   offset,
		ViewerID: userID,
	})
}
