// Package seed populates a database with demo users, communities, posts,
// comments and likes. It is intended for development and testing only.
package seed

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CommunitySpec names a community the plan always creates.
type CommunitySpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Plan describes how much data a seeding run produces.
type Plan struct {
	Users               int             `yaml:"users"`
	Password            string          `yaml:"password"`
	Communities         []CommunitySpec `yaml:"communities"`
	RandomCommunities   int             `yaml:"random_communities"`
	MembersPerCommunity int             `yaml:"members_per_community"`
	PostsPerCommunity   int             `yaml:"posts_per_community"`
	CommentsPerPost     int             `yaml:"comments_per_post"`
	// ReplyRatio is the share of comments posted as replies to an earlier
	// comment on the same post.
	ReplyRatio    float64 `yaml:"reply_ratio"`
	LikesPerPost  int     `yaml:"likes_per_post"`
	SharesPerPost int     `yaml:"shares_per_post"`
	MaxDays       int     `yaml:"max_days"`
}

// DefaultPlan is used when no plan file is given.
func DefaultPlan() Plan {
	return Plan{
		Users:               25,
		Password:            "password123",
		Communities:         BuiltInCommunities,
		RandomCommunities:   3,
		MembersPerCommunity: 10,
		PostsPerCommunity:   8,
		CommentsPerPost:     4,
		ReplyRatio:          0.4,
		LikesPerPost:        6,
		SharesPerPost:       2,
		MaxDays:             30,
	}
}

// LoadPlan reads a YAML plan. Keys missing from the file keep their
// DefaultPlan values.
func LoadPlan(path string) (Plan, error) {
	plan := DefaultPlan()
	raw, err := os.ReadFile(path)
	if err != nil {
		return plan, fmt.Errorf("read seed plan: %w", err)
	}
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return plan, fmt.Errorf("parse seed plan %s: %w", path, err)
	}
	if err := plan.Validate(); err != nil {
		return plan, fmt.Errorf("seed plan %s: %w", path, err)
	}
	return plan, nil
}

// Validate rejects plans that cannot be seeded.
func (p Plan) Validate() error {
	if p.Users < 1 {
		return errors.New("users must be at least 1")
	}
	if p.Password == "" {
		return errors.New("password is required")
	}
	if len(p.Communities)+p.RandomCommunities == 0 && p.PostsPerCommunity > 0 {
		return errors.New("posts need at least one community")
	}
	if p.ReplyRatio < 0 || p.ReplyRatio > 1 {
		return fmt.Errorf("reply_ratio must be within [0,1], got %v", p.ReplyRatio)
	}
	for _, n := range []int{p.RandomCommunities, p.MembersPerCommunity, p.PostsPerCommunity, p.CommentsPerPost, p.LikesPerPost, p.SharesPerPost, p.MaxDays} {
		if n < 0 {
			return errors.New("counts must not be negative")
		}
	}
	return nil
}
