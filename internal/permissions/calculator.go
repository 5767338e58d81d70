package permissions

import (
	"context"
	"fmt"

	"github.com/gatehouse-labs/gatehouse/internal/identity"
)

// Calculator computes the permissions one source grants an account within a
// scope. Implementations may contribute items for scopes other than the
// requested one; the chain validates and rejects those.
type Calculator interface {
	// CalculatePermissions returns the calculator's contribution for the
	// account/scope pair. A calculator with nothing to contribute returns an
	// empty Refinable, never nil.
	CalculatePermissions(ctx context.Context, account identity.Account, scope string) (*Refinable, error)

	// PersistentCacheContexts declares, without running the calculation,
	// which context tokens the output varies on for the given scope. Must be
	// stable and side-effect-free.
	PersistentCacheContexts(scope string) []string
}

// Named is optionally implemented by calculators that want a stable name in
// scope-violation reports. Others are reported by their Go type.
type Named interface {
	Name() string
}

// NoopCalculator is an embeddable base that contributes nothing. Concrete
// calculators embed it and override only what they need.
type NoopCalculator struct{}

// CalculatePermissions returns an empty contribution.
func (NoopCalculator) CalculatePermissions(ctx context.Context, account identity.Account, scope string) (*Refinable, error) {
	return NewRefinable(), nil
}

// PersistentCacheContexts declares no context dependencies.
func (NoopCalculator) PersistentCacheContexts(scope string) []string {
	return nil
}

// FreshnessLimit contributes no items; it only caps the max-age of every
// calculation it participates in, so cached results expire even without an
// explicit tag invalidation.
type FreshnessLimit struct {
	NoopCalculator
	maxAge int
}

// NewFreshnessLimit constructs a FreshnessLimit capping max-age at the given
// number of seconds.
func NewFreshnessLimit(maxAge int) *FreshnessLimit {
	return &FreshnessLimit{maxAge: maxAge}
}

// Name identifies the calculator in scope-violation reports.
func (c *FreshnessLimit) Name() string { return "core.freshness" }

// CalculatePermissions returns an empty contribution carrying the cap.
func (c *FreshnessLimit) CalculatePermissions(ctx context.Context, account identity.Account, scope string) (*Refinable, error) {
	result := NewRefinable()
	result.RestrictMaxAge(c.maxAge)
	return result, nil
}

// CalculatorName returns the reporting name for a calculator.
func CalculatorName(c Calculator) string {
	if named, ok := c.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", c)
}
