package memory

import (
	"context"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"sort"
)

type activityRepo struct{ s *Store }

func (r *activityRepo) Create(_ context.Context, a *model.Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.activities = append(r.s.activities, *a)
	return nil
}

func (r *activityRepo) List(_ context.Context, f repository.ActivityFilter) ([]model.Activity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Activity{}
	for _, a := range r.s.activities {
		if f.UserEmail != "" && a.UserEmail != f.UserEmail {
			continue
		}
		if f.Action != "" && a.Action != f.Action {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, 0), nil
}
