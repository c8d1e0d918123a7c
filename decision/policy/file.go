package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// policyFile is the on-disk layout:
//
//	policies:
//	  - id: leakage-cap
//	    type: leakage_limit
//	    severity: error
//	    threshold: 5000
type policyFile struct {
	Policies []filePolicy `yaml:"policies"`
}

// filePolicy mirrors Policy; a missing enabled key means enabled
type filePolicy struct {
	Policy  `yaml:",inline"`
	Enabled *bool `yaml:"enabled"`
}

// LoadFile reads custom policies from a YAML file
func LoadFile(path string) ([]Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML policy document
func Parse(data []byte) ([]Policy, error) {
	var doc policyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	policies := make([]Policy, 0, len(doc.Policies))
	seen := make(map[string]struct{}, len(doc.Policies))
	for i, fp := range doc.Policies {
		p := fp.Policy
		p.Enabled = fp.Enabled == nil || *fp.Enabled
		if p.Severity == "" {
			p.Severity = SeverityWarning
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		if p.ID == "" {
			return nil, fmt.Errorf("policy %d: missing id", i+1)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("policy %s: duplicate id", p.ID)
		}
		seen[p.ID] = struct{}{}
		policies = append(policies, p)
	}
	return policies, nil
}

// ValidateAll checks every policy, returning the first problem found
func (e *Engine) ValidateAll(policies []Policy) error {
	for _, p := range policies {
		if err := e.Validate(p); err != nil {
			return err
		}
	}
	return nil
}
