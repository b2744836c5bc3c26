package plan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Source loads the plans a Catalog is built from.
type Source interface {
	Load(ctx context.Context) ([]Plan, error)
}

// Catalog is an immutable, read-only index of plans by code and tier.
type Catalog struct {
	ordered []Plan
	byCode  map[string]Plan
	byTier  map[Tier]Plan
}

// NewCatalog loads plans from src once and validates them.
// Panics if src is nil.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("plan: Source is required")
	}
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return buildCatalog(plans)
}

func buildCatalog(plans []Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, ErrNoPlans
	}
	c := &Catalog{
		byCode: make(map[string]Plan, len(plans)),
		byTier: make(map[Tier]Plan, len(plans)),
	}
	for _, p := range plans {
		p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
		if p.Currency == "" {
			p.Currency = DefaultCurrency
		}
		if err := validatePlan(p); err != nil {
			return nil, err
		}
		if _, dup := c.byCode[p.Code]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlanCode, p.Code)
		}
		if _, dup := c.byTier[p.Tier]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlanTier, p.Tier)
		}
		c.byCode[p.Code] = p
		c.byTier[p.Tier] = p
		c.ordered = append(c.ordered, p)
	}
	slices.SortStableFunc(c.ordered, func(a, b Plan) int {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		return int(a.Tier) - int(b.Tier)
	})
	return c, nil
}

func validatePlan(p Plan) error {
	switch {
	case p.Code == "":
		return fmt.Errorf("%w: code is required", ErrInvalidPlan)
	case !p.Tier.Valid():
		return fmt.Errorf("%w: plan %s has unknown tier %d", ErrInvalidPlan, p.Code, p.Tier)
	case p.MonthlyPrice.IsNegative() || p.AnnualPrice.IsNegative():
		return fmt.Errorf("%w: plan %s has a negative price", ErrInvalidPlan, p.Code)
	}
	for _, f := range Features {
		if l := p.Limit(f); l != nil && *l < 0 {
			return fmt.Errorf("%w: plan %s has a negative %s limit", ErrInvalidPlan, p.Code, f)
		}
	}
	return nil
}

// GetByCode looks a plan up by its case-insensitive code.
func (c *Catalog) GetByCode(code string) (Plan, error) {
	p, ok := c.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Plan{}, fmt.Errorf("%w: code %q", ErrPlanNotFound, code)
	}
	return p, nil
}

func (c *Catalog) GetByTier(tier Tier) (Plan, error) {
	p, ok := c.byTier[tier]
	if !ok {
		return Plan{}, fmt.Errorf("%w: tier %s", ErrPlanNotFound, tier)
	}
	return p, nil
}

// List returns active plans in display order.
func (c *Catalog) List() []Plan {
	out := make([]Plan, 0, len(c.ordered))
	for _, p := range c.ordered {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

// Next returns the plan one tier above tier, if any. It is the upgrade
// recommendation shown when a limit is reached.
func (c *Catalog) Next(tier Tier) (Plan, bool) {
	p, ok := c.byTier[tier+1]
	return p, ok
}
