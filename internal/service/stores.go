package service

import (
	"context"
	"time"

	"card-admin/internal/model"
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdateProfile(ctx context.Context, u model.User) error
	UpdateFlags(ctx context.Context, u model.User) error
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, query model.UserQuery) ([]model.User, int, error)
}

type CardStore interface {
	Create(ctx context.Context, c model.Card) error
	FindByID(ctx context.Context, userID string, id string) (model.Card, error)
	ListByUser(ctx context.Context, userID string) ([]model.Card, error)
	Update(ctx context.Context, c model.Card) error
	SoftDelete(ctx context.Context, userID string, id string, at time.Time) error
}

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error)
}

// EventRecorder counts authentication outcomes.
type EventRecorder interface {
	AuthEvent(event string, outcome string)
}
