// Package tokens estimates token counts before a provider is called.
//
// Estimates feed two consumers: the quota tracker, which needs an
// approximate token total at reserve time (real usage only arrives with
// the response), and request validation against a model's context window.
// Neither needs tokenizer-exact numbers, so the estimator divides
// character counts by a per-model ratio instead of running a real
// tokenizer. For typical prose this lands within a few percent of what
// providers bill, and it costs microseconds with no model files to ship.
//
// Ratios come from configuration keyed by model id or id prefix, with a
// configurable default. Actual usage reported by providers always
// overrides these estimates once known.
package tokens
