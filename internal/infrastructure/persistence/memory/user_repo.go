package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var out *entity.User
	r.s.read(func() {
		if u, ok := r.s.users[id]; ok {
			out = cloneUser(u)
		}
	})
	if out == nil {
		return nil, fmt.Errorf("user %d: %w", id, domainwf.ErrNotFound)
	}
	return out, nil
}

func (r *userRepo) ListActive(ctx context.Context) ([]*entity.User, error) {
	return r.collect(func(u *entity.User) bool { return u.Active }), nil
}

func (r *userRepo) ListActiveByRole(ctx context.Context, role string) ([]*entity.User, error) {
	return r.collect(func(u *entity.User) bool { return u.Active && u.Role == role }), nil
}

func (r *userRepo) Upsert(ctx context.Context, user *entity.User) error {
	if user.ID <= 0 {
		return fmt.Errorf("user id must be positive, got %d", user.ID)
	}
	return r.s.write(ctx, func() error {
		r.s.users[user.ID] = cloneUser(user)
		return nil
	})
}

func (r *userRepo) collect(match func(*entity.User) bool) []*entity.User {
	var out []*entity.User
	r.s.read(func() {
		for _, u := range r.s.users {
			if match(u) {
				out = append(out, cloneUser(u))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ port.UserRepository = (*userRepo)(nil)
