// Package plan holds the immutable plan catalog: tiers, prices and per-feature
// limits, plus the soft-limit and percentage arithmetic shared by the limit
// engine and the usage ledger.
//
// A Catalog is built once from a Source. StaticSource (DefaultPlans),
// YAMLSource and PGSource are provided:
//
//	catalog, err := plan.NewCatalog(ctx, plan.YAMLSource{Path: "plans.yaml"})
//	starter, err := catalog.GetByTier(plan.TierStarter)
//
// Lookups that miss return ErrPlanNotFound.
package plan
