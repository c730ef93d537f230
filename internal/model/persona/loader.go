package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileFormat struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads a YAML persona table of the form
//
//	personas:
//	  - id: sam
//	    name: Sam
//	    aliases: [easy]
//	    systemPrompt: |
//	      You are Sam...
func LoadFile(path string) ([]Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML persona table.
func Parse(raw []byte) ([]Persona, error) {
	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode persona file: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Personas))
	for i := range doc.Personas {
		p := &doc.Personas[i]
		p.ID = strings.TrimSpace(p.ID)
		p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
		if p.ID == "" {
			return nil, fmt.Errorf("persona #%d: id is required", i+1)
		}
		if p.SystemPrompt == "" {
			return nil, fmt.Errorf("persona %q: systemPrompt is required", p.ID)
		}
		if p.Name == "" {
			p.Name = p.ID
		}

		keys := append([]string{p.ID}, p.Aliases...)
		for _, key := range keys {
			k := strings.ToLower(key)
			if _, dup := seen[k]; dup {
				return nil, fmt.Errorf("persona %q: duplicate key %q", p.ID, key)
			}
			seen[k] = struct{}{}
		}
	}

	if _, ok := seen[DefaultID]; !ok {
		return nil, fmt.Errorf("persona file must define the default persona %q", DefaultID)
	}
	return doc.Personas, nil
}

// OpenStore returns the built-in table when path is empty, otherwise the
// table read from path.
func OpenStore(path string) (*MemoryStore, error) {
	if path == "" {
		return NewMemoryStore(Seed()), nil
	}
	items, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(items), nil
}
