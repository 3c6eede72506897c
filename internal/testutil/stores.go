// Package testutil holds in-memory stores and HTTP helpers shared by tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"card-admin/internal/model"
)

// UserStore enforces the same case-insensitive uniqueness over live rows
// as the partial unique indexes in Postgres.
type UserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: map[string]model.User{}}
}

func (s *UserStore) FindByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *UserStore) FindByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(username))
	for _, u := range s.users {
		if u.DeletedAt == nil && strings.ToLower(u.Username) == key {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *UserStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveMatchLocked(func(u model.User) bool { return strings.EqualFold(u.Username, username) }), nil
}

func (s *UserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveMatchLocked(func(u model.User) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (s *UserStore) Create(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := s.liveMatchLocked(func(existing model.User) bool {
		return strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email)
	})
	if taken {
		return fmt.Errorf("create user: %w", model.ErrUserAlreadyExists)
	}

	s.users[u.ID] = u
	return nil
}

func (s *UserStore) UpdateProfile(_ context.Context, u model.User) error {
	return s.mutate(u.ID, func(stored *model.User) {
		stored.Nickname = u.Nickname
		stored.Locale = u.Locale
		stored.Timezone = u.Timezone
		stored.Currency = u.Currency
		stored.UpdatedAt = u.UpdatedAt
	})
}

func (s *UserStore) UpdateFlags(_ context.Context, u model.User) error {
	return s.mutate(u.ID, func(stored *model.User) {
		stored.IsActive = u.IsActive
		stored.IsVerified = u.IsVerified
		stored.IsAdmin = u.IsAdmin
		stored.UpdatedAt = u.UpdatedAt
	})
}

func (s *UserStore) UpdatePassword(_ context.Context, userID string, passwordHash string) error {
	return s.mutate(userID, func(stored *model.User) {
		stored.PasswordHash = passwordHash
		stored.UpdatedAt = time.Now().UTC()
	})
}

func (s *UserStore) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	err := s.mutate(userID, func(stored *model.User) { stored.LastLoginAt = &at })
	if errors.Is(err, model.ErrUserNotFound) {
		return nil
	}
	return err
}

func (s *UserStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	return s.mutate(id, func(stored *model.User) {
		stored.DeletedAt = &at
		stored.IsActive = false
		stored.UpdatedAt = at
	})
}

func (s *UserStore) List(_ context.Context, query model.UserQuery) ([]model.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(query.Search))
	matched := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		if u.DeletedAt != nil {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.Nickname), search) {
			continue
		}
		matched = append(matched, u)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return paginate(matched, query.Page, query.Limit), len(matched), nil
}

func (s *UserStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, u := range s.users {
		if u.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

// Get returns the stored row, deleted or not.
func (s *UserStore) Get(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *UserStore) liveMatchLocked(match func(model.User) bool) bool {
	for _, u := range s.users {
		if u.DeletedAt == nil && match(u) {
			return true
		}
	}
	return false
}

func (s *UserStore) mutate(id string, apply func(*model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return model.ErrUserNotFound
	}
	apply(&u)
	s.users[id] = u
	return nil
}

type CardStore struct {
	mu    sync.Mutex
	cards map[string]model.Card
}

func NewCardStore() *CardStore {
	return &CardStore{cards: map[string]model.Card{}}
}

func (s *CardStore) Create(_ context.Context, c model.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[c.ID] = c
	return nil
}

func (s *CardStore) FindByID(_ context.Context, userID string, id string) (model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[id]
	if !ok || c.UserID != userID || c.DeletedAt != nil {
		return model.Card{}, model.ErrCardNotFound
	}
	return c, nil
}

func (s *CardStore) ListByUser(_ context.Context, userID string) ([]model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards := make([]model.Card, 0)
	for _, c := range s.cards {
		if c.UserID == userID && c.DeletedAt == nil {
			cards = append(cards, c)
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].ID < cards[j].ID
		}
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
	return cards, nil
}

func (s *CardStore) Update(_ context.Context, c model.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.cards[c.ID]
	if !ok || stored.UserID != c.UserID || stored.DeletedAt != nil {
		return model.ErrCardNotFound
	}
	c.CreatedAt = stored.CreatedAt
	s.cards[c.ID] = c
	return nil
}

func (s *CardStore) SoftDelete(_ context.Context, userID string, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[id]
	if !ok || c.UserID != userID || c.DeletedAt != nil {
		return model.ErrCardNotFound
	}
	c.DeletedAt = &at
	c.UpdatedAt = at
	s.cards[id] = c
	return nil
}

// AuditStore keeps entries in insertion order. Setting Err makes every Log
// call fail.
type AuditStore struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	Err     error
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Log(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *AuditStore) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, _ := time.Parse(time.RFC3339Nano, query.From)
	to, _ := time.Parse(time.RFC3339Nano, query.To)

	matched := make([]model.AuditEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if query.Action != "" && !strings.EqualFold(e.Action, query.Action) {
			continue
		}
		if query.Status != "" && !strings.EqualFold(e.Status, query.Status) {
			continue
		}
		if query.ActorID != "" && e.Actor.UserID != query.ActorID {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, e.OccurredAt)
		if err == nil {
			if !from.IsZero() && at.Before(from) {
				continue
			}
			if !to.IsZero() && at.After(to) {
				continue
			}
		}
		matched = append(matched, e)
	}

	return paginate(matched, query.Page, query.Limit), len(matched), nil
}

// Entries returns a copy of everything logged so far.
func (s *AuditStore) Entries() []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.entries...)
}

func paginate[T any](items []T, page int, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
