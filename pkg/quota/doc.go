// Package quota tracks per-provider request and token usage over fixed
// 60-second windows aligned to wall-clock minutes.
//
// Requests are reserved before a provider is called and the reservation
// is final; there are no refunds, so a failed call still consumes its
// slot. Tokens are only known after a response completes, so they are
// committed after the fact and enforced indirectly: a window that
// overruns its token budget flags the provider rate-limited for the
// next minute rather than rejecting the in-flight request.
//
// Windows are persisted under quota:{provider_id}:{epoch_minute} with a
// short TTL. Like the health store, the tracker fails open: an
// unreachable backing store makes it permissive, never a gate.
package quota
