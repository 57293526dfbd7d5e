package seed

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"agora/internal/database"
	"agora/internal/models"
	"agora/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Options configure a Seeder.
type Options struct {
	// FastHash hashes the shared password with bcrypt.MinCost.
	FastHash bool

	// Concurrency bounds parallel engagement writes. Defaults to 4.
	Concurrency int

	// RandSeed makes runs reproducible. Zero picks a random seed.
	RandSeed int64

	BatchSize int
}

// Report counts what a run created.
type Report struct {
	Users        int
	Communities  int
	Memberships  int
	Posts        int
	Comments     int
	PostLikes    int64
	CommentLikes int64
	Shares       int64
}

// Seeder writes a Plan through the repositories so counters and membership
// rules match what the API would produce.
type Seeder struct {
	db          *gorm.DB
	opts        Options
	communities repository.CommunityRepository
	posts       repository.PostRepository
	comments    repository.CommentRepository
	engagement  repository.EngagementRepository
}

// NewSeeder returns a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Seeder{
		db:          db,
		opts:        opts,
		communities: repository.NewCommunityRepository(db),
		posts:       repository.NewPostRepository(db),
		comments:    repository.NewCommentRepository(db),
		engagement:  repository.NewEngagementRepository(db),
	}
}

// ClearAll deletes every application row, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	log.Println("🗑️  Clearing existing data...")
	all := database.PersistentModels()
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for i := len(all) - 1; i >= 0; i-- {
		if err := tx.Delete(all[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", all[i], err)
		}
	}
	return nil
}

// Run seeds everything the plan describes.
func (s *Seeder) Run(ctx context.Context, plan Plan) (*Report, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	f := NewFactory(s.opts.RandSeed, plan.MaxDays)
	report := &Report{}

	users, err := s.seedUsers(ctx, f, plan)
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	report.Users = len(users)
	log.Printf("✓ %d users created", len(users))

	communities, err := s.seedCommunities(ctx, f, plan, users)
	if err != nil {
		return nil, fmt.Errorf("seed communities: %w", err)
	}
	report.Communities = len(communities)

	members, joined, err := s.seedMemberships(ctx, f, plan, communities, users)
	if err != nil {
		return nil, fmt.Errorf("seed memberships: %w", err)
	}
	report.Memberships = joined
	log.Printf("✓ %d communities, %d new memberships", len(communities), joined)

	posts, err := s.seedPosts(ctx, f, plan, communities, members)
	if err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}
	report.Posts = len(posts)

	comments, err := s.seedComments(ctx, f, plan, posts, users)
	if err != nil {
		return nil, fmt.Errorf("seed comments: %w", err)
	}
	for _, list := range comments {
		report.Comments += len(list)
	}
	log.Printf("✓ %d posts, %d comments", report.Posts, report.Comments)

	if err := s.seedEngagement(ctx, f, plan, posts, comments, users, report); err != nil {
		return nil, fmt.Errorf("seed engagement: %w", err)
	}
	log.Printf("✓ %d post likes, %d comment likes, %d shares", report.PostLikes, report.CommentLikes, report.Shares)

	return report, nil
}

func (s *Seeder) seedUsers(ctx context.Context, f *Factory, plan Plan) ([]*models.User, error) {
	cost := bcrypt.DefaultCost
	if s.opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plan.Password), cost)
	if err != nil {
		return nil, err
	}

	// Usernames are suffixed past the highest existing ID so repeated runs
	// never collide.
	var offset int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Select("COALESCE(MAX(id), 0)").Row().Scan(&offset); err != nil {
		return nil, err
	}

	users := make([]*models.User, plan.Users)
	for i := range users {
		users[i] = f.User(int(offset)+i+1, string(hash))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(users, s.opts.BatchSize).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Seeder) seedCommunities(ctx context.Context, f *Factory, plan Plan, users []*models.User) ([]*models.Community, error) {
	out := make([]*models.Community, 0, len(plan.Communities)+plan.RandomCommunities)

	for _, spec := range plan.Communities {
		owner := users[f.Pick(len(users), 1)[0]]
		community := &models.Community{Name: spec.Name, Description: spec.Description, OwnerID: &owner.ID}
		err := s.communities.Create(ctx, community)
		if models.ErrorCode(err) == models.CodeConflict {
			existing, findErr := s.findByName(ctx, spec.Name)
			if findErr != nil {
				return nil, findErr
			}
			out = append(out, existing)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, community)
	}

	for i := 0; i < plan.RandomCommunities; i++ {
		owner := users[f.Pick(len(users), 1)[0]]
		community := f.Community(len(out)+1, owner.ID)
		if err := s.communities.Create(ctx, community); err != nil {
			if models.ErrorCode(err) == models.CodeConflict {
				continue
			}
			return nil, err
		}
		out = append(out, community)
	}
	return out, nil
}

func (s *Seeder) findByName(ctx context.Context, name string) (*models.Community, error) {
	var community models.Community
	err := s.db.WithContext(ctx).Where("name_key = ?", models.CommunityNameKey(name)).First(&community).Error
	return &community, err
}

// seedMemberships returns, per community, the users who may author posts in it.
func (s *Seeder) seedMemberships(ctx context.Context, f *Factory, plan Plan, communities []*models.Community, users []*models.User) (map[uint][]*models.User, int, error) {
	members := make(map[uint][]*models.User, len(communities))
	joined := 0
	for _, c := range communities {
		for _, idx := range f.Pick(len(users), plan.MembersPerCommunity) {
			u := users[idx]
			err := s.communities.AddMember(ctx, c.ID, u.ID, models.MembershipRoleMember)
			switch {
			case err == nil:
				joined++
			case models.ErrorCode(err) == models.CodeConflict:
			default:
				return nil, 0, err
			}
			members[c.ID] = append(members[c.ID], u)
		}
		if len(members[c.ID]) == 0 {
			members[c.ID] = users
		}
	}
	return members, joined, nil
}

func (s *Seeder) seedPosts(ctx context.Context, f *Factory, plan Plan, communities []*models.Community, members map[uint][]*models.User) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, len(communities)*plan.PostsPerCommunity)
	for _, c := range communities {
		authors := members[c.ID]
		for i := 0; i < plan.PostsPerCommunity; i++ {
			author := authors[f.Pick(len(authors), 1)[0]]
			post := f.Post(author.ID, c.ID)
			if err := s.posts.Create(ctx, post); err != nil {
				return nil, err
			}
			posts = append(posts, post)
		}
	}
	return posts, nil
}

func (s *Seeder) seedComments(ctx context.Context, f *Factory, plan Plan, posts []*models.Post, users []*models.User) (map[uint][]*models.Comment, error) {
	out := make(map[uint][]*models.Comment, len(posts))
	for _, post := range posts {
		var thread []*models.Comment
		for i := 0; i < plan.CommentsPerPost; i++ {
			var parentID *uint
			if len(thread) > 0 && f.Chance(plan.ReplyRatio) {
				parent := thread[f.Pick(len(thread), 1)[0]]
				parentID = &parent.ID
			}
			author := users[f.Pick(len(users), 1)[0]]
			comment := f.Comment(post, author.ID, parentID)
			if err := s.comments.Create(ctx, comment); err != nil {
				return nil, err
			}
			thread = append(thread, comment)
		}
		out[post.ID] = thread
	}
	return out, nil
}

type engagementJob struct {
	post       *models.Post
	likers     []uint
	shares     int
	commentFan map[uint]uint
}

// seedEngagement precomputes every like and share, then applies them in
// parallel. The factory is only used before the goroutines start.
func (s *Seeder) seedEngagement(ctx context.Context, f *Factory, plan Plan, posts []*models.Post, comments map[uint][]*models.Comment, users []*models.User, report *Report) error {
	jobs := make([]engagementJob, 0, len(posts))
	for _, post := range posts {
		job := engagementJob{post: post, shares: plan.SharesPerPost, commentFan: map[uint]uint{}}
		for _, idx := range f.Pick(len(users), plan.LikesPerPost) {
			job.likers = append(job.likers, users[idx].ID)
		}
		for _, c := range comments[post.ID] {
			if f.Chance(0.5) {
				job.commentFan[c.ID] = users[f.Pick(len(users), 1)[0]].ID
			}
		}
		jobs = append(jobs, job)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			for _, uid := range job.likers {
				_, created, err := s.engagement.LikePost(gctx, job.post.ID, uid)
				if err != nil {
					return err
				}
				if created {
					atomic.AddInt64(&report.PostLikes, 1)
				}
			}
			for i := 0; i < job.shares; i++ {
				if _, err := s.engagement.SharePost(gctx, job.post.ID); err != nil {
					return err
				}
				atomic.AddInt64(&report.Shares, 1)
			}
			for commentID, uid := range job.commentFan {
				_, created, err := s.engagement.LikeComment(gctx, job.post.ID, commentID, uid)
				if err != nil {
					return err
				}
				if created {
					atomic.AddInt64(&report.CommentLikes, 1)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
