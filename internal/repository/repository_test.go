package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/gap-pos/internal/domain"
)

func TestMemoryFlowRepository_CopiesAndExpires(t *testing.T) {
	repo := NewMemoryFlowRepository().(*memoryFlowRepository)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }
	ctx := context.Background()

	flow := domain.NewPolicyFlow("flow-1", domain.EnvironmentTest, clock)
	flow.Application.Vehicle.Category = "PC"
	require.NoError(t, repo.Save(ctx, flow, time.Hour))

	flow.Application.Vehicle.Category = "LCV"
	got, err := repo.Get(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "PC", got.Application.Vehicle.Category)

	clock = clock.Add(time.Hour)
	_, err = repo.Get(ctx, "flow-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryFlowRepository_Delete(t *testing.T) {
	repo := NewMemoryFlowRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, domain.NewPolicyFlow("flow-1", domain.EnvironmentTest, time.Now()), 0))
	require.NoError(t, repo.Delete(ctx, "flow-1"))

	_, err := repo.Get(ctx, "flow-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryFlowRepository_RejectsStaleSave(t *testing.T) {
	repo := NewMemoryFlowRepository()
	ctx := context.Background()

	flow := domain.NewPolicyFlow("flow-1", domain.EnvironmentTest, time.Now())
	require.NoError(t, repo.Save(ctx, flow, time.Hour))
	assert.Equal(t, int64(1), flow.Version)

	first, err := repo.Get(ctx, "flow-1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "flow-1")
	require.NoError(t, err)

	first.QuoteConsumed = true
	require.NoError(t, repo.Save(ctx, first, time.Hour))
	assert.Equal(t, int64(2), first.Version)

	second.Application.Vehicle.Category = "LCV"
	assert.ErrorIs(t, repo.Save(ctx, second, time.Hour), ErrVersionConflict)
	assert.Equal(t, int64(1), second.Version)

	got, err := repo.Get(ctx, "flow-1")
	require.NoError(t, err)
	assert.True(t, got.QuoteConsumed)
	assert.Empty(t, got.Application.Vehicle.Category)
	assert.Equal(t, int64(2), got.Version)
}

func TestMemoryFlowRepository_SaveAfterExpiry(t *testing.T) {
	repo := NewMemoryFlowRepository().(*memoryFlowRepository)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }
	ctx := context.Background()

	flow := domain.NewPolicyFlow("flow-1", domain.EnvironmentTest, clock)
	require.NoError(t, repo.Save(ctx, flow, time.Minute))

	clock = clock.Add(time.Minute)
	assert.ErrorIs(t, repo.Save(ctx, flow, time.Minute), ErrNotFound)
	assert.NoError(t, repo.Save(ctx, domain.NewPolicyFlow("flow-1", domain.EnvironmentTest, clock), time.Minute))
}

func TestMemoryLockGuard(t *testing.T) {
	guard := NewMemoryLockGuard().(*memoryLockGuard)
	clock := time.Now()
	guard.now = func() time.Time { return clock }
	ctx := context.Background()

	ok, err := guard.Acquire(ctx, "lock:q-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = guard.Acquire(ctx, "lock:q-1", time.Minute)
	assert.False(t, ok)

	ok, _ = guard.Acquire(ctx, "lock:q-2", time.Minute)
	assert.True(t, ok)

	clock = clock.Add(2 * time.Minute)
	ok, _ = guard.Acquire(ctx, "lock:q-1", time.Minute)
	assert.True(t, ok)
}

func TestBuildPolicyListQuery(t *testing.T) {
	env := domain.EnvironmentProduction
	term := " GAP/2026 "
	query, args := buildPolicyListQuery(PolicyFilter{
		Environment: &env,
		Statuses:    []domain.PolicyStatus{domain.PolicyStatusConfirmed, domain.PolicyStatusDocumentsReady},
		SearchTerm:  &term,
		Limit:       500,
		Offset:      -3,
	})

	assert.Contains(t, query, "environment=$1")
	assert.Contains(t, query, "status IN ($2,$3)")
	assert.Contains(t, query, "LOWER(policy_number) LIKE $4")
	assert.Contains(t, query, "LIMIT 200 OFFSET 0")
	assert.Equal(t, []any{env, domain.PolicyStatusConfirmed, domain.PolicyStatusDocumentsReady, "%gap/2026%"}, args)
}
