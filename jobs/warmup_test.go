package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-labs/gatehouse/internal/accounts"
	"github.com/gatehouse-labs/gatehouse/internal/identity"
	"github.com/gatehouse-labs/gatehouse/internal/permissions"
)

type mapCache struct {
	entries map[string]*permissions.CalculatedPermissions
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]*permissions.CalculatedPermissions{}}
}

func (c *mapCache) Get(ctx context.Context, baseKey string, contexts []string) (*permissions.CalculatedPermissions, bool, error) {
	value, ok := c.entries[baseKey]
	return value, ok, nil
}

func (c *mapCache) Set(ctx context.Context, baseKey string, value *permissions.CalculatedPermissions, contexts []string) error {
	c.entries[baseKey] = value
	return nil
}

type countingCalculator struct {
	permissions.NoopCalculator
	calls int
	err   error
}

func (c *countingCalculator) CalculatePermissions(ctx context.Context, account identity.Account, scope string) (*permissions.Refinable, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	result := permissions.NewRefinable()
	result.AddItem(permissions.NewItem(scope, account.ID, []string{"view"}, false))
	return result, nil
}

type staticLister struct {
	active []accounts.Account
	err    error
}

func (l *staticLister) ListActive(ctx context.Context) ([]accounts.Account, error) {
	return l.active, l.err
}

func newWarmupFixture(calc *countingCalculator, lister AccountLister) (*WarmupJob, *mapCache) {
	durable := newMapCache()
	chain := permissions.NewChain(permissions.ChainConfig{
		Transient: newMapCache(),
		Durable:   durable,
	})
	chain.AddCalculator(calc)
	return NewWarmupJob(chain, lister, discardLogger()), durable
}

func TestWarmupJobPrecomputesEveryAccountScopePair(t *testing.T) {
	calc := &countingCalculator{}
	lister := &staticLister{active: []accounts.Account{
		{ID: 7, IsActive: true},
		{ID: 8, IsActive: true},
	}}
	job, durable := newWarmupFixture(calc, lister)

	task, err := NewWarmupTask([]string{"space", "project"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, 4, calc.calls)
	assert.Len(t, durable.entries, 4)
	for key := range durable.entries {
		assert.True(t, strings.HasPrefix(key, "permissions:"), key)
	}
}

func TestWarmupJobSkipsRetryOnMalformedPayload(t *testing.T) {
	job, _ := newWarmupFixture(&countingCalculator{}, &staticLister{})
	task := asynq.NewTask(TaskPermissionsWarmup, []byte("{"))
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestWarmupJobNoopsOnEmptyScopes(t *testing.T) {
	calc := &countingCalculator{}
	job, _ := newWarmupFixture(calc, &staticLister{active: []accounts.Account{{ID: 7}}})

	task, err := NewWarmupTask(nil)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Zero(t, calc.calls)
}

func TestWarmupJobReturnsCalculationErrorForRetry(t *testing.T) {
	boom := errors.New("pg down")
	calc := &countingCalculator{err: boom}
	job, _ := newWarmupFixture(calc, &staticLister{active: []accounts.Account{{ID: 7}}})

	task, err := NewWarmupTask([]string{"space"})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

func TestWarmupJobSurfacesListerError(t *testing.T) {
	boom := errors.New("pg down")
	job, _ := newWarmupFixture(&countingCalculator{}, &staticLister{err: boom})

	task, err := NewWarmupTask([]string{"space"})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), boom)
}
