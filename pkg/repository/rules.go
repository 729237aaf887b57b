package repository

import (
	"context"
	"log"

	"github.com/vaishnaviprints/printlogic/pkg/models"
)

type RuleLister interface {
	ListRules(ctx context.Context) ([]models.PriceRule, error)
}

// RuleCache fronts the rule store with a cache so estimate traffic does not
// hit the database on every request. A cache miss falls through to the
// store and repopulates best-effort.
type RuleCache struct {
	Cache Repository[models.PriceRule]
	Store RuleLister
}

func NewRuleCache(cache Repository[models.PriceRule], store RuleLister) *RuleCache {
	return &RuleCache{Cache: cache, Store: store}
}

func (rc *RuleCache) ListRules(ctx context.Context) ([]models.PriceRule, error) {
	rules, err := rc.Cache.List(ctx)
	if err == nil && len(rules) > 0 {
		return rules, nil
	}
	if err != nil {
		log.Printf("[RULECACHE] list failed, falling back to store: %v", err)
	}

	rules, err = rc.Store.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if err := rc.Cache.Save(ctx, rule); err != nil {
			log.Printf("[RULECACHE] repopulate failed for rule %s: %v", rule.RuleId, err)
			break
		}
	}
	return rules, nil
}

// Clear drops every cached rule so the next read reloads the full set from
// the store. Rules are append-only versions, so publishing a new one must
// flush the whole cache: the fresh rule was never cached, and any leftover
// entry would keep serving the superseded set.
func (rc *RuleCache) Clear(ctx context.Context) {
	rules, err := rc.Cache.List(ctx)
	if err != nil {
		log.Printf("[RULECACHE] clear failed to list cache: %v", err)
		return
	}
	for _, rule := range rules {
		if err := rc.Cache.Delete(ctx, rule.RuleId); err != nil {
			log.Printf("[RULECACHE] clear failed for rule %s: %v", rule.RuleId, err)
		}
	}
}
