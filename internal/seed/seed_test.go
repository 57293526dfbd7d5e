package seed

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"agora/internal/models"
	"agora/internal/testutil"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

func smallPlan() Plan {
	return Plan{
		Users:               6,
		Password:            "password123",
		Communities:         []CommunitySpec{{Name: "General", Description: "Anything"}},
		RandomCommunities:   1,
		MembersPerCommunity: 3,
		PostsPerCommunity:   2,
		CommentsPerPost:     3,
		ReplyRatio:          0.5,
		LikesPerPost:        4,
		SharesPerPost:       1,
		MaxDays:             7,
	}
}

func TestLoadPlan_MergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yml")
	content := "users: 3\nposts_per_community: 1\ncommunities:\n  - name: Gophers\n    description: Go\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	plan, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	if plan.Users != 3 || plan.PostsPerCommunity != 1 {
		t.Fatalf("file values not applied: %+v", plan)
	}
	if len(plan.Communities) != 1 || plan.Communities[0].Name != "Gophers" {
		t.Fatalf("communities not replaced: %+v", plan.Communities)
	}
	if plan.Password != DefaultPlan().Password {
		t.Fatalf("expected default password, got %q", plan.Password)
	}
}

func TestLoadPlan_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad yaml":    "users: [",
		"no users":    "users: 0\n",
		"reply ratio": "reply_ratio: 1.5\n",
		"negative":    "likes_per_post: -1\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name+".yml")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write plan: %v", err)
		}
		if _, err := LoadPlan(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	if _, err := LoadPlan(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestFactory_UserAndPost(t *testing.T) {
	f := NewFactory(42, 10)

	seen := map[string]bool{}
	for i := 1; i <= 50; i++ {
		u := f.User(i, "hash")
		if !usernamePattern.MatchString(u.Username) {
			t.Fatalf("invalid username %q", u.Username)
		}
		if seen[u.Username] {
			t.Fatalf("duplicate username %q", u.Username)
		}
		seen[u.Username] = true
	}

	p := f.Post(1, 2)
	if p.Title == "" || p.Content == "" {
		t.Fatal("expected generated title and content")
	}
	if time.Since(p.CreatedAt) > 11*24*time.Hour {
		t.Fatalf("created_at too old: %v", p.CreatedAt)
	}

	c := f.Comment(p, 3, nil)
	if c.CreatedAt.Before(p.CreatedAt) {
		t.Fatalf("comment predates its post: %v < %v", c.CreatedAt, p.CreatedAt)
	}
}

func TestFactory_PickIsDistinctAndClamped(t *testing.T) {
	f := NewFactory(7, 1)
	got := f.Pick(5, 10)
	if len(got) != 5 {
		t.Fatalf("expected clamp to 5, got %d", len(got))
	}
	seen := map[int]bool{}
	for _, i := range got {
		if seen[i] {
			t.Fatalf("duplicate index %d", i)
		}
		seen[i] = true
	}
}

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewTestDB(t)
	s := NewSeeder(db, Options{FastHash: true, RandSeed: 1, Concurrency: 3})

	report, err := s.Run(context.Background(), smallPlan())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Users != 6 || report.Communities != 2 || report.Posts != 4 || report.Comments != 12 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Shares != 4 {
		t.Fatalf("expected 4 shares, got %d", report.Shares)
	}

	// Denormalized counters must equal their edge counts.
	var posts []models.Post
	if err := db.Find(&posts).Error; err != nil {
		t.Fatalf("load posts: %v", err)
	}
	var likeSum int64
	for _, p := range posts {
		var edges int64
		if err := db.Model(&models.PostLike{}).Where("post_id = ?", p.ID).Count(&edges).Error; err != nil {
			t.Fatalf("count likes: %v", err)
		}
		if p.LikesCount != edges {
			t.Fatalf("post %d: likes_count %d, edges %d", p.ID, p.LikesCount, edges)
		}
		if p.ShareCount != 1 {
			t.Fatalf("post %d: share_count %d", p.ID, p.ShareCount)
		}
		likeSum += edges
	}
	if likeSum != report.PostLikes {
		t.Fatalf("report says %d likes, table has %d", report.PostLikes, likeSum)
	}

	var comments []models.Comment
	if err := db.Find(&comments).Error; err != nil {
		t.Fatalf("load comments: %v", err)
	}
	byID := map[uint]models.Comment{}
	for _, c := range comments {
		byID[c.ID] = c
	}
	for _, c := range comments {
		if c.ParentID != nil && byID[*c.ParentID].PostID != c.PostID {
			t.Fatalf("comment %d replies across posts", c.ID)
		}
	}

	// Every post author is a member of the post's community.
	for _, p := range posts {
		var n int64
		db.Model(&models.Membership{}).Where("user_id = ? AND community_id = ?", p.AuthorID, p.CommunityID).Count(&n)
		if n != 1 {
			t.Fatalf("post %d author %d is not a member of community %d", p.ID, p.AuthorID, p.CommunityID)
		}
	}
}

func TestSeeder_RunTwiceAndClear(t *testing.T) {
	db := testutil.NewTestDB(t)
	s := NewSeeder(db, Options{FastHash: true, RandSeed: 2})
	plan := smallPlan()
	plan.RandomCommunities = 0

	if _, err := s.Run(context.Background(), plan); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := s.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Communities != 1 {
		t.Fatalf("expected existing community reused, got %d", report.Communities)
	}

	var users int64
	db.Model(&models.User{}).Count(&users)
	if users != 12 {
		t.Fatalf("expected 12 users after two runs, got %d", users)
	}

	if err := s.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	for _, m := range []any{&models.User{}, &models.Post{}, &models.PostLike{}, &models.Comment{}} {
		var n int64
		db.Model(m).Count(&n)
		if n != 0 {
			t.Fatalf("%T not cleared: %d rows", m, n)
		}
	}
}

func TestCommunities_Idempotent(t *testing.T) {
	db := testutil.NewTestDB(t)

	for i := 0; i < 2; i++ {
		if err := Communities(context.Background(), db); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	var count int64
	if err := db.Model(&models.Community{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != int64(len(BuiltInCommunities)) {
		t.Fatalf("expected %d communities, got %d", len(BuiltInCommunities), count)
	}
}
