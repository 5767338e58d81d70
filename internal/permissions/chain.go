package permissions

import (
	"context"

	"github.com/gatehouse-labs/gatehouse/internal/identity"
)

// AccountSwitcher substitutes the ambient active account around a miss
// computation, in strict push/pop discipline.
type AccountSwitcher interface {
	SwitchTo(account identity.Account)
	SwitchBack() error
}

// Stats receives chain-level counters. Implementations must tolerate
// concurrent calls; a nil Stats disables reporting.
type Stats interface {
	CacheHit(tier string)
	CacheMiss()
	ScopeViolation()
}

// ChainConfig collects the chain's collaborators. A nil Switcher disables
// identity switching around miss computations, like a nil Stats disables
// reporting; callers whose caches vary on the active account must wire one.
type ChainConfig struct {
	Transient VariationCache
	Durable   VariationCache
	Switcher  AccountSwitcher
	Stats     Stats
}

// Chain coordinates an ordered set of calculators behind a two-tier
// variation cache. Registration order determines merge order and which
// calculator is blamed first on a scope violation.
type Chain struct {
	calculators []Calculator
	transient   VariationCache
	durable     VariationCache
	switcher    AccountSwitcher
	stats       Stats
}

// NewChain constructs a Chain with no registered calculators.
func NewChain(cfg ChainConfig) *Chain {
	return &Chain{
		transient: cfg.Transient,
		durable:   cfg.Durable,
		switcher:  cfg.Switcher,
		stats:     cfg.Stats,
	}
}

// AddCalculator appends a calculator to the chain.
func (c *Chain) AddCalculator(calculator Calculator) {
	c.calculators = append(c.calculators, calculator)
}

// Calculators returns the registered calculators in registration order.
func (c *Chain) Calculators() []Calculator {
	out := make([]Calculator, len(c.calculators))
	copy(out, c.calculators)
	return out
}

// PersistentCacheContexts concatenates every calculator's declared context
// tokens for the scope, in registration order. Duplicates are preserved;
// the caches fold them when building keys.
func (c *Chain) PersistentCacheContexts(scope string) []string {
	var tokens []string
	for _, calculator := range c.calculators {
		tokens = append(tokens, calculator.PersistentCacheContexts(scope)...)
	}
	return tokens
}

// CalculatePermissions computes the permissions account holds within scope.
// Lookups go through the transient tier first, then the durable tier (with a
// transient backfill on hit). On a full miss the chain runs every calculator
// in registration order, validates that each contributed item stays within
// the requested scope, merges the contributions, and stores the frozen
// result in both tiers.
//
// When any declared context token is CacheContextUser, the ambient active
// account is switched to the target account for the duration of the miss
// computation, because the caches resolve that token against the ambient
// account rather than the account parameter. The previous account is
// restored on every exit path. The switcher is never invoked otherwise.
func (c *Chain) CalculatePermissions(ctx context.Context, account identity.Account, scope string) (result *CalculatedPermissions, err error) {
	contexts := c.PersistentCacheContexts(scope)
	key := BaseKey(account, scope)

	cached, ok, err := c.transient.Get(ctx, key, contexts)
	if err != nil {
		return nil, err
	}
	if ok {
		c.reportHit(TierTransient)
		return cached, nil
	}

	cached, ok, err = c.durable.Get(ctx, key, contexts)
	if err != nil {
		return nil, err
	}
	if ok {
		c.reportHit(TierDurable)
		if err := c.transient.Set(ctx, key, cached, contexts); err != nil {
			return nil, err
		}
		return cached, nil
	}
	c.reportMiss()

	if c.switcher != nil && dependsOnActiveAccount(contexts) {
		c.switcher.SwitchTo(account)
		defer func() {
			if rerr := c.switcher.SwitchBack(); rerr != nil && err == nil {
				result, err = nil, rerr
			}
		}()
	}

	accumulator := NewRefinable()
	for _, calculator := range c.calculators {
		contribution, calcErr := calculator.CalculatePermissions(ctx, account, scope)
		if calcErr != nil {
			return nil, calcErr
		}
		if contribution == nil {
			contribution = NewRefinable()
		}
		for _, item := range contribution.Items() {
			if item.Scope() != scope {
				c.reportViolation()
				return nil, &ScopeViolationError{Calculator: CalculatorName(calculator), Scope: scope}
			}
		}
		accumulator = accumulator.Merge(contribution)
	}
	accumulator.AddCacheTags(CacheTag)

	result = accumulator.Freeze()
	if err := c.durable.Set(ctx, key, result, contexts); err != nil {
		return nil, err
	}
	if err := c.transient.Set(ctx, key, result, contexts); err != nil {
		return nil, err
	}
	return result, nil
}

func dependsOnActiveAccount(tokens []string) bool {
	for _, token := range tokens {
		if token == CacheContextUser {
			return true
		}
	}
	return false
}

func (c *Chain) reportHit(tier string) {
	if c.stats != nil {
		c.stats.CacheHit(tier)
	}
}

func (c *Chain) reportMiss() {
	if c.stats != nil {
		c.stats.CacheMiss()
	}
}

func (c *Chain) reportViolation() {
	if c.stats != nil {
		c.stats.ScopeViolation()
	}
}
