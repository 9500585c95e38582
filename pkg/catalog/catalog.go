package catalog

import (
	"fmt"
	"sort"

	"tycho-hq/meridian/pkg/config"
)

// Catalog is the immutable lookup surface over one configuration
// generation: providers, canonical models, and aliases. All lookups are
// pure and safe for concurrent use. Reconfiguration builds a fresh Catalog
// and swaps it in whole; requests in flight keep the snapshot they started
// with.
type Catalog struct {
	providers map[string]*Provider
	models    map[string]*CanonicalModel
	aliases   map[string][]string

	// providerCaps is the union of capabilities across each provider's
	// canonical models, precomputed for Supports.
	providerCaps map[string]Capabilities

	providerIDs []string
	modelIDs    []string
	aliasNames  []string
}

// New builds a Catalog from validated configuration. Credential
// indirections are resolved here, so a missing secret fails the generation
// instead of the first request that needs it.
func New(cfg *config.Config) (*Catalog, error) {
	c := &Catalog{
		providers:    make(map[string]*Provider, len(cfg.Providers)),
		models:       make(map[string]*CanonicalModel, len(cfg.CanonicalModels)),
		aliases:      make(map[string][]string, len(cfg.Aliases)),
		providerCaps: make(map[string]Capabilities, len(cfg.Providers)),
	}

	for id, pc := range cfg.Providers {
		credential, err := config.ResolveCredential(pc.CredentialRef)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", id, err)
		}

		c.providers[id] = &Provider{
			ID:           id,
			Name:         pc.Name,
			Kind:         pc.Kind,
			Endpoint:     pc.Endpoint,
			Credential:   credential,
			Tier:         pc.Tier,
			Free:         pc.Free,
			Enabled:      pc.IsEnabled(),
			RPMLimit:     pc.RPMLimit,
			TPMLimit:     pc.TPMLimit,
			Timeout:      pc.Timeout,
			NativeModels: append([]string(nil), pc.Models...),
			Quirks:       pc.Quirks,
		}
		c.providerIDs = append(c.providerIDs, id)
	}
	sort.Strings(c.providerIDs)

	for _, mc := range cfg.CanonicalModels {
		if _, ok := c.providers[mc.ProviderID]; !ok {
			return nil, fmt.Errorf("canonical model %s references unknown provider %q", mc.ID, mc.ProviderID)
		}
		if _, ok := c.models[mc.ID]; ok {
			return nil, fmt.Errorf("duplicate canonical model %q", mc.ID)
		}

		m := &CanonicalModel{
			ID:            mc.ID,
			ProviderID:    mc.ProviderID,
			ModelPath:     mc.ModelPath,
			ContextWindow: mc.ContextWindow,
			Capabilities: Capabilities{
				Streaming:        mc.Capabilities.Streaming,
				Tools:            mc.Capabilities.Tools,
				Vision:           mc.Capabilities.Vision,
				StructuredOutput: mc.Capabilities.StructuredOutput,
				LogProbs:         mc.Capabilities.LogProbs,
			},
			Pricing: pricingFor(cfg, mc.ProviderID, mc.ModelPath),
		}

		c.models[m.ID] = m
		c.modelIDs = append(c.modelIDs, m.ID)
		c.providerCaps[m.ProviderID] = c.providerCaps[m.ProviderID].merge(m.Capabilities)
	}
	sort.Strings(c.modelIDs)

	for name, template := range cfg.Aliases {
		for _, id := range template {
			if _, ok := c.models[id]; !ok {
				return nil, fmt.Errorf("alias %s references unknown canonical model %q", name, id)
			}
		}
		c.aliases[name] = append([]string(nil), template...)
		c.aliasNames = append(c.aliasNames, name)
	}
	sort.Strings(c.aliasNames)

	return c, nil
}

// pricingFor looks up configured pricing for a deployment. Missing entries
// price as free.
func pricingFor(cfg *config.Config, providerID, modelPath string) Pricing {
	byModel, ok := cfg.Pricing[providerID]
	if !ok {
		return Pricing{}
	}
	p, ok := byModel[modelPath]
	if !ok {
		return Pricing{}
	}
	return Pricing{Prompt: p.Prompt, Completion: p.Completion}
}

// Resolve maps a model selector to the ordered candidate deployments.
//
// An alias expands to its template in order, dropping models whose owning
// provider is disabled; an empty expansion is reported as unknown. A
// canonical model id resolves to itself regardless of the provider switch,
// since the caller asked for that exact deployment. Anything else is
// unknown.
func (c *Catalog) Resolve(selector string) ([]*CanonicalModel, error) {
	if template, ok := c.aliases[selector]; ok {
		candidates := make([]*CanonicalModel, 0, len(template))
		for _, id := range template {
			m := c.models[id]
			if !c.providers[m.ProviderID].Enabled {
				continue
			}
			candidates = append(candidates, m)
		}
		if len(candidates) == 0 {
			return nil, &UnknownModelError{Selector: selector}
		}
		return candidates, nil
	}

	if m, ok := c.models[selector]; ok {
		return []*CanonicalModel{m}, nil
	}

	return nil, &UnknownModelError{Selector: selector}
}

// Provider returns the provider with the given id. Disabled providers are
// still returned; callers check Enabled.
func (c *Catalog) Provider(id string) (*Provider, error) {
	p, ok := c.providers[id]
	if !ok {
		return nil, &UnknownProviderError{ID: id}
	}
	return p, nil
}

// Model returns the canonical model with the given id.
func (c *Catalog) Model(id string) (*CanonicalModel, bool) {
	m, ok := c.models[id]
	return m, ok
}

// Supports reports whether any canonical model owned by the provider has
// the capability. Unknown providers support nothing.
func (c *Catalog) Supports(providerID string, capability Capability) bool {
	return c.providerCaps[providerID].Has(capability)
}

// Models lists every alias and canonical model id the catalog accepts,
// sorted by id.
func (c *Catalog) Models() []ModelInfo {
	infos := make([]ModelInfo, 0, len(c.aliasNames)+len(c.modelIDs))
	for _, name := range c.aliasNames {
		infos = append(infos, ModelInfo{ID: name, Alias: true})
	}
	for _, id := range c.modelIDs {
		infos = append(infos, ModelInfo{ID: id, OwnedBy: c.models[id].ProviderID})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Providers lists all configured providers sorted by id, including
// disabled ones.
func (c *Catalog) Providers() []*Provider {
	out := make([]*Provider, 0, len(c.providerIDs))
	for _, id := range c.providerIDs {
		out = append(out, c.providers[id])
	}
	return out
}

// Aliases lists alias names sorted.
func (c *Catalog) Aliases() []string {
	return append([]string(nil), c.aliasNames...)
}

// Limits returns the declared per-minute request and token limits for a
// provider. Zero means unlimited; unknown providers are unlimited.
func (c *Catalog) Limits(providerID string) (rpm, tpm int) {
	p, ok := c.providers[providerID]
	if !ok {
		return 0, 0
	}
	return p.RPMLimit, p.TPMLimit
}
