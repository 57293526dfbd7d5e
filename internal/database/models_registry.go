package database

import "agora/internal/models"

// PersistentModels lists every table AutoMigrate manages, parents before the
// rows that reference them.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Community{},
		&models.Membership{},
		&models.Post{},
		&models.PostLike{},
		&models.Comment{},
		&models.CommentLike{},
		&models.UserSuggestion{},
		&models.Image{},
	}
}
