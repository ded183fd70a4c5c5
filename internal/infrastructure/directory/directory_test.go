package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/memory"
)

// slowUsers blocks until the context is done
type slowUsers struct{}

func (slowUsers) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowUsers) ListActive(ctx context.Context) ([]*entity.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowUsers) ListActiveByRole(ctx context.Context, role string) ([]*entity.User, error) {
	return nil, errors.New("connection reset")
}

func (slowUsers) Upsert(ctx context.Context, user *entity.User) error { return nil }

func TestAdapter_Lookups(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	users := store.Users()
	require.NoError(t, users.Upsert(ctx, &entity.User{ID: 1, Username: "alice", Role: "finance", Active: true}))
	require.NoError(t, users.Upsert(ctx, &entity.User{ID: 2, Username: "bob", Role: "finance", Active: false}))
	require.NoError(t, users.Upsert(ctx, &entity.User{ID: 3, Username: "carol", Role: "hr", Active: true}))

	dir := New(users, time.Second, nil)

	u, err := dir.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)

	_, err = dir.GetUser(ctx, 42)
	assert.True(t, errors.Is(err, domainwf.ErrNotFound))
	assert.False(t, errors.Is(err, domainwf.ErrInfrastructure))

	finance, err := dir.ListActiveByRole(ctx, "finance")
	require.NoError(t, err)
	require.Len(t, finance, 1)
	assert.Equal(t, int64(1), finance[0].ID)

	active, err := dir.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestAdapter_TimeoutIsInfrastructureFailure(t *testing.T) {
	dir := New(slowUsers{}, 10*time.Millisecond, nil)

	start := time.Now()
	_, err := dir.GetUser(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainwf.ErrInfrastructure))
	assert.Less(t, time.Since(start), time.Second)

	_, err = dir.ListActive(context.Background())
	assert.True(t, errors.Is(err, domainwf.ErrInfrastructure))

	_, err = dir.ListActiveByRole(context.Background(), "finance")
	assert.True(t, errors.Is(err, domainwf.ErrInfrastructure))
	assert.Equal(t, domainwf.CodeInfrastructure, domainwf.ErrorCode(err))
}
