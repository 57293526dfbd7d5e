package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/repository"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// assertCode asserts that err is an AppError with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeUnauthorized)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeForbidden)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev notifications.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []notifications.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notifications.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// env wires every service over one in-memory database.
type env struct {
	db          *gorm.DB
	events      *recordingPublisher
	users       *UserService
	communities *CommunityService
	posts       *PostService
	comments    *CommentService
	engagement  *EngagementService
	discovery   *DiscoveryService
	suggestions *SuggestionService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewTestDB(t)
	events := &recordingPublisher{}

	userRepo := repository.NewUserRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)

	return &env{
		db:          db,
		events:      events,
		users:       NewUserService(userRepo),
		communities: NewCommunityService(communityRepo),
		posts:       NewPostService(postRepo, userRepo, communityRepo, engagementRepo),
		comments:    NewCommentService(commentRepo, postRepo, engagementRepo, events),
		engagement:  NewEngagementService(engagementRepo, events),
		discovery:   NewDiscoveryService(communityRepo, postRepo, engagementRepo),
		suggestions: NewSuggestionService(repository.NewSuggestionRepository(db), userRepo),
	}
}
