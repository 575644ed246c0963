package memory

import (
	"context"
	"fmt"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"sort"
	"strings"
)

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.Email]; ok {
		return fmt.Errorf("user %s already exists: %w", user.Email, common.ErrConflict)
	}
	ts := now()
	user.CreatedAt, user.UpdatedAt = ts, ts
	r.s.users[user.Email] = *user
	return nil
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) List(_ context.Context, limit, offset int) ([]model.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].Email < all[j].Email
	})
	return page(all, limit, offset), len(all), nil
}

func (r *userRepo) Search(_ context.Context, term, exclude string, limit int) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	term = strings.ToLower(term)
	users := []model.User{}
	for _, u := range r.s.users {
		if u.Email == exclude {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(u.Name), term) && !strings.Contains(u.Email, term) {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].Email < users[j].Email
	})
	return page(users, limit, 0), nil
}

func (r *userRepo) UpdateProfile(_ context.Context, email, name string, image *string) error {
	return r.update(email, func(u *model.User) {
		u.Name = name
		u.Image = image
	})
}

func (r *userRepo) UpdateStatus(_ context.Context, email, status string) error {
	return r.update(email, func(u *model.User) { u.Status = status })
}

func (r *userRepo) UpdateRole(_ context.Context, email, role string) error {
	return r.update(email, func(u *model.User) { u.Role = role })
}

func (r *userRepo) update(email string, fn func(u *model.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[email]
	if !ok {
		return common.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = now()
	r.s.users[email] = u
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
