package policy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type document struct {
	Policies []Rule `yaml:"policies"`
}

// Parse decodes a policy document. The document is fully validated before an
// engine is built; on error the returned engine is empty and denies everything.
func Parse(data []byte) (*Engine, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return NewEngine(nil), fmt.Errorf("parse policies: %w", err)
	}
	if len(doc.Policies) == 0 {
		return NewEngine(nil), errors.New("parse policies: no rules defined")
	}
	for i, r := range doc.Policies {
		if len(r.Roles) == 0 || len(r.Actions) == 0 || len(r.Resources) == 0 {
			return NewEngine(nil), fmt.Errorf("parse policies: rule %d must list roles, actions and resources", i)
		}
	}
	return NewEngine(doc.Policies), nil
}

// LoadFile reads and parses the policy file at path. A missing or malformed
// file yields an empty engine together with the error.
func LoadFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewEngine(nil), fmt.Errorf("read policies: %w", err)
	}
	return Parse(data)
}
