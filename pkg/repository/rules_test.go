package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
	"github.com/vaishnaviprints/printlogic/pkg/models"
)

func ruleId(r models.PriceRule) string { return r.RuleId }

type countingLister struct {
	rules []models.PriceRule
	calls int
}

func (c *countingLister) ListRules(ctx context.Context) ([]models.PriceRule, error) {
	c.calls++
	return c.rules, nil
}

func TestMemoryRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo(ruleId)

	rule := models.PriceRule{RuleId: "r-1", Name: "standard", Active: true}
	require.NoError(t, repo.Save(ctx, rule))

	loaded, err := repo.Load(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "standard", loaded.Name)

	_, err = repo.Load(ctx, "r-missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, svcerror.ErrNotFound))

	require.NoError(t, repo.Delete(ctx, "r-1"))
	_, err = repo.Load(ctx, "r-1")
	assert.Error(t, err)
}

func TestRuleCacheFallsThroughAndRepopulates(t *testing.T) {
	ctx := context.Background()
	source := &countingLister{rules: []models.PriceRule{
		{RuleId: "r-1", Active: true, CreatedAt: time.Now()},
		{RuleId: "r-2", Active: true, CreatedAt: time.Now()},
	}}
	cache := NewRuleCache(NewMemoryRepo(ruleId), source)

	rules, err := cache.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
	assert.Equal(t, 1, source.calls)

	// second call served from the cache
	rules, err = cache.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
	assert.Equal(t, 1, source.calls)
}

func TestRuleCacheClearForcesReload(t *testing.T) {
	ctx := context.Background()
	source := &countingLister{rules: []models.PriceRule{{RuleId: "r-1", Active: true}}}
	cache := NewRuleCache(NewMemoryRepo(ruleId), source)

	_, err := cache.ListRules(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)

	cache.Clear(ctx)

	_, err = cache.ListRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestRuleCacheNewRuleVisibleAfterClear(t *testing.T) {
	ctx := context.Background()
	source := &countingLister{rules: []models.PriceRule{{RuleId: "r-old", Active: true}}}
	cache := NewRuleCache(NewMemoryRepo(ruleId), source)

	// warm the cache with the old set
	rules, err := cache.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	// a rule published after warming stays invisible until the cache is
	// flushed, the leftover entries keep the cached set non-empty
	source.rules = append(source.rules, models.PriceRule{RuleId: "r-new", Active: true})

	rules, err = cache.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	cache.Clear(ctx)

	rules, err = cache.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	ids := []string{rules[0].RuleId, rules[1].RuleId}
	assert.Contains(t, ids, "r-new")
}
