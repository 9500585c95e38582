package providerfactory

import (
	"fmt"
	"log/slog"

	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/providers"
)

// BuildRegistry constructs drivers for every enabled provider in the
// catalog and returns them as a registry.
//
// Any single driver failing to build fails the whole call and closes the
// drivers built so far. Reload paths rely on this: a new generation's
// registry is built first and swapped in only on success, so a bad config
// leaves the running generation untouched.
func BuildRegistry(cat *catalog.Catalog) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	for _, p := range cat.Providers() {
		if !p.Enabled {
			slog.Debug("skipping disabled provider", "provider", p.ID)
			continue
		}

		driver, err := New(driverConfig(p))
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("build registry: %w", err)
		}
		registry.Register(driver)
	}

	slog.Info("driver registry built", "drivers", len(registry.Names()))
	return registry, nil
}

// driverConfig maps a catalog provider onto the driver configuration.
// Connection pool sizing stays on the HTTP client defaults.
func driverConfig(p *catalog.Provider) providers.DriverConfig {
	return providers.DriverConfig{
		ProviderID: p.ID,
		Kind:       p.Kind,
		Endpoint:   p.Endpoint,
		Credential: p.Credential,
		Timeout:    p.Timeout,
		Quirks:     p.Quirks,
	}
}
