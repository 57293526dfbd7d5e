package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix       = "users:detail:%d"
	PostKeyPrefix       = "posts:detail:%d"
	CommunityKeyPrefix  = "communities:detail:%d"
	PostsListVersionKey = "posts:list:version"
	PostsListKeyPattern = "posts:list:v%d:%s"
	TrendingKeyPattern  = "trending:%s:%d"
)

const (
	UserTTL      = 5 * time.Minute
	CommunityTTL = 10 * time.Minute
	PostTTL      = 30 * time.Minute
	ListTTL      = 30 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func CommunityKey(communityID uint) string {
	return fmt.Sprintf(CommunityKeyPrefix, communityID)
}

// PostsListKey returns a list-cache key scoped to the current list version.
// Bumping the version with InvalidatePostsList orphans every older list key,
// which then expire on their own.
func PostsListKey(ctx context.Context, variant string) string {
	var version int64
	if client != nil {
		if v, err := client.Get(ctx, PostsListVersionKey).Int64(); err == nil {
			version = v
		}
	}
	return fmt.Sprintf(PostsListKeyPattern, version, variant)
}

// TrendingKey names a cached trending projection of the given kind and size.
func TrendingKey(kind string, limit int) string {
	return fmt.Sprintf(TrendingKeyPattern, kind, limit)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

func InvalidateCommunity(ctx context.Context, communityID uint) {
	Invalidate(ctx, CommunityKey(communityID))
}

// InvalidatePostsList drops every cached post list and trending projection.
func InvalidatePostsList(ctx context.Context) {
	if client == nil {
		return
	}
	client.Incr(ctx, PostsListVersionKey)
	Invalidate(ctx, TrendingKey("posts", 10), TrendingKey("communities", 10))
}
