package policy

import (
	"fmt"
)

// Provider supplies optimization policies. Implementations must be safe for
// concurrent use and side-effect-free on reads.
type Provider interface {
	// Configuration returns the full policy set. The returned set is a copy;
	// callers may not mutate provider state through it.
	Configuration() PolicySet

	// ContentTypeSettings returns the policy for one content type.
	ContentTypeSettings(ct ContentType) (OptimizationPolicy, error)
}

// StaticProvider serves a fixed policy set. It is the default provider used
// when no remote configuration store is wired in.
type StaticProvider struct {
	policies PolicySet
}

// NewStaticProvider creates a provider from the given policy set.
// Each policy is validated up front so misconfiguration fails at startup
// rather than mid-pipeline.
func NewStaticProvider(set PolicySet) (*StaticProvider, error) {
	if len(set) == 0 {
		return nil, fmt.Errorf("policy set cannot be empty")
	}
	for ct, pol := range set {
		if pol.ContentType != ct {
			return nil, fmt.Errorf("policy keyed as %q declares content type %q", ct, pol.ContentType)
		}
		if err := pol.Validate(); err != nil {
			return nil, fmt.Errorf("policy for %q: %w", ct, err)
		}
	}

	copied := make(PolicySet, len(set))
	for ct, pol := range set {
		copied[ct] = pol
	}

	return &StaticProvider{policies: copied}, nil
}

// NewDefaultProvider creates a provider with the built-in default policies.
func NewDefaultProvider() *StaticProvider {
	p, err := NewStaticProvider(DefaultPolicySet())
	if err != nil {
		// Defaults are defined in this package; failing validation is a bug.
		panic(fmt.Sprintf("default policy set invalid: %v", err))
	}
	return p
}

// Configuration returns a copy of the full policy set.
func (p *StaticProvider) Configuration() PolicySet {
	out := make(PolicySet, len(p.policies))
	for ct, pol := range p.policies {
		out[ct] = pol
	}
	return out
}

// ContentTypeSettings returns the policy for the given content type.
func (p *StaticProvider) ContentTypeSettings(ct ContentType) (OptimizationPolicy, error) {
	pol, ok := p.policies[ct]
	if !ok {
		return OptimizationPolicy{}, fmt.Errorf("no policy for content type %q", ct)
	}
	return pol, nil
}
