package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/vouchershop/core/logger"
	"github.com/m3rciful/vouchershop/internal/model"
	"github.com/m3rciful/vouchershop/internal/store"
)

// Users manages customer records: verification, blocking, lookups.
type Users struct {
	repo *store.Users
	now  func() time.Time
}

// NewUsers builds the user service.
func NewUsers(repo *store.Users) *Users {
	return &Users{repo: repo, now: time.Now}
}

// Get returns the user record and whether it exists.
func (u *Users) Get(ctx context.Context, id string) (model.User, bool, error) {
	return u.repo.Get(ctx, id)
}

// List returns every registered user.
func (u *Users) List(ctx context.Context) ([]model.User, error) {
	return u.repo.List(ctx)
}

// MarkVerified records a passed verification, creating the user on first
// success.
func (u *Users) MarkVerified(ctx context.Context, id, name string) (model.User, error) {
	user, ok, err := u.repo.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	if !ok {
		user = model.User{
			ID:       id,
			Name:     name,
			JoinedAt: u.now(),
			Status:   model.UserActive,
			Verified: true,
		}
		if err := u.repo.Create(ctx, user); err != nil {
			return model.User{}, err
		}
		logger.SVCUsers.Info("user registered",
			slog.String("event", "user.register"),
			slog.String("user_id", id),
		)
		return user, nil
	}

	if user.Verified && user.Name == name {
		return user, nil
	}
	user.Verified = true
	user.Name = name
	if err := u.repo.Update(ctx, user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// SetBlocked flips the block flag of an existing user.
func (u *Users) SetBlocked(ctx context.Context, id string, blocked bool) (model.User, error) {
	user, ok, err := u.repo.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		return model.User{}, ErrUserNotFound
	}

	status := model.UserActive
	if blocked {
		status = model.UserBlocked
	}
	if user.Status == status {
		return user, nil
	}
	user.Status = status
	if err := u.repo.Update(ctx, user); err != nil {
		return model.User{}, err
	}

	logger.SVCUsers.Info("user status changed",
		slog.String("event", "user.block"),
		slog.String("user_id", id),
		slog.String("state", string(status)),
	)
	return user, nil
}
