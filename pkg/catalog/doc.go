// Package catalog provides the static model registry derived from
// configuration: providers, canonical model deployments, and aliases.
//
// A Catalog is built once per configuration generation and is immutable
// afterwards; every lookup is a pure read. The gateway holds the current
// generation behind an atomic pointer, so a reload never disturbs requests
// already in flight.
//
// The central operation is Resolve, which turns a user-facing model
// selector into the ordered list of candidate deployments the router
// scores:
//
//	candidates, err := cat.Resolve("llama-3.3-70b")
//	if err != nil {
//		var unknown *catalog.UnknownModelError
//		if errors.As(err, &unknown) {
//			// surface as a 400 to the client
//		}
//	}
package catalog
