package seed

import (
	"fmt"
	"strings"
	"time"

	"agora/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory builds unsaved domain entities filled with fake content.
// It is not safe for concurrent use.
type Factory struct {
	faker   *gofakeit.Faker
	maxDays int
	now     time.Time
}

// NewFactory returns a factory whose output is reproducible for a given seed.
// A zero seed picks a random one.
func NewFactory(seed int64, maxDays int) *Factory {
	if maxDays <= 0 {
		maxDays = 30
	}
	return &Factory{faker: gofakeit.New(seed), maxDays: maxDays, now: time.Now()}
}

// User builds the i-th seeded user. Usernames are unique per index and always
// satisfy the username rules.
func (f *Factory) User(i int, passwordHash string) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	base := strings.ToLower(onlyWordChars(first))
	if base == "" {
		base = "user"
	}
	suffix := fmt.Sprintf("_%d", i)
	if len(base)+len(suffix) > 30 {
		base = base[:30-len(suffix)]
	}
	username := base + suffix
	return &models.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: first,
		LastName:  last,
		Password:  passwordHash,
	}
}

// Community builds a community with a generated, index-qualified name.
func (f *Factory) Community(i int, ownerID uint) *models.Community {
	name := fmt.Sprintf("%s %s %d", capitalize(f.faker.HipsterWord()), f.faker.NounCollectiveThing(), i)
	return &models.Community{
		Name:        name,
		Description: f.faker.HipsterSentence(10),
		OwnerID:     &ownerID,
	}
}

// Post builds a post with a creation time spread over the last maxDays.
func (f *Factory) Post(authorID, communityID uint) *models.Post {
	post := &models.Post{
		Title:       strings.TrimSuffix(f.faker.Sentence(6), "."),
		Content:     f.faker.Paragraph(1, 3, 10, "\n\n"),
		AuthorID:    authorID,
		CommunityID: communityID,
		CreatedAt:   f.createdAt(f.now),
	}
	if f.faker.Number(1, 10) <= 3 {
		post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID())
	}
	return post
}

// Comment builds a comment made after the post was created.
func (f *Factory) Comment(post *models.Post, authorID uint, parentID *uint) *models.Comment {
	created := post.CreatedAt.Add(time.Duration(f.faker.Number(1, 600)) * time.Minute)
	if created.After(f.now) {
		created = f.now
	}
	return &models.Comment{
		Content:   f.faker.Sentence(f.faker.Number(4, 16)),
		PostID:    post.ID,
		AuthorID:  authorID,
		ParentID:  parentID,
		CreatedAt: created,
	}
}

// Pick returns k distinct indexes in [0, n). k is clamped to n.
func (f *Factory) Pick(n, k int) []int {
	if k > n {
		k = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	f.faker.ShuffleInts(idx)
	return idx[:k]
}

// Chance reports true with probability p.
func (f *Factory) Chance(p float64) bool {
	return f.faker.Float64Range(0, 1) < p
}

func (f *Factory) createdAt(now time.Time) time.Time {
	back := time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute
	return now.Add(-back)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func onlyWordChars(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
