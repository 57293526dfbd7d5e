package seed

import (
	"context"
	"fmt"

	"agora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuiltInCommunities are created on every environment that seeds built-ins.
var BuiltInCommunities = []CommunitySpec{
	{Name: "General", Description: "Anything goes."},
	{Name: "Announcements", Description: "Platform news and updates."},
	{Name: "Help", Description: "Questions about using Agora."},
	{Name: "Programming", Description: "Code, tools and the craft of software."},
	{Name: "Books", Description: "Reading lists and reviews."},
	{Name: "Music", Description: "Discovery and discussion."},
}

// Communities upserts the built-in communities. Existing rows keep their
// owner and have their display name and description refreshed.
func Communities(ctx context.Context, db *gorm.DB) error {
	for _, item := range BuiltInCommunities {
		community := models.Community{
			Name:        item.Name,
			NameKey:     models.CommunityNameKey(item.Name),
			Description: item.Description,
		}
		err := db.WithContext(ctx).Omit("Owner").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "updated_at"}),
		}).Create(&community).Error
		if err != nil {
			return fmt.Errorf("seed built-in community %s: %w", item.Name, err)
		}
	}
	return nil
}
