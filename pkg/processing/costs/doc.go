// Package costs prices requests against per-model pricing tables.
//
// Pricing is resolved per canonical model when the catalog is built, so
// the functions here take the resolved pricing directly rather than
// looking anything up. Two consumers: the router's cost term (Rate
// collapses a model's pricing to one comparable number, with free
// models at exactly zero) and response accounting (ForUsage prices what
// a completed request actually consumed).
//
// All rates are USD per 1K tokens, matching how providers publish them.
package costs
