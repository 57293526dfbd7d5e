// Package service holds the business rules of the platform. Services validate
// input, enforce ownership and actor requirements, and delegate persistence to
// the repository layer.
package service

import (
	"context"

	"agora/internal/models"
	"agora/internal/notifications"
)

// EventPublisher receives engagement events after their mutation commits.
// *notifications.Dispatcher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, ev notifications.Event)
}

// errNoActor is returned for writes attempted without an authenticated user.
func errNoActor() error {
	return models.NewUnauthorizedError("Authentication credentials were not provided.")
}

func requireActor(userID uint) error {
	if userID == 0 {
		return errNoActor()
	}
	return nil
}

// fieldError converts a validation failure on one input field into an AppError.
func fieldError(field string, err error) error {
	return models.NewFieldValidationError(field, err.Error())
}

func publish(ctx context.Context, events EventPublisher, ev notifications.Event) {
	if events != nil {
		events.Publish(ctx, ev)
	}
}
