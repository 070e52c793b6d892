package plans

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticSource serves an in-memory plan set. Useful for tests and for
// applications that define their catalog in code.
type StaticSource struct {
	plans map[string]Plan
}

// NewStaticSource creates a source backed by the given plan map.
func NewStaticSource(plans map[string]Plan) *StaticSource {
	return &StaticSource{plans: plans}
}

func (s *StaticSource) Load(_ context.Context) (map[string]Plan, error) {
	out := make(map[string]Plan, len(s.plans))
	for id, p := range s.plans {
		out[id] = p
	}
	return out, nil
}

// YAMLSource loads the catalog from a YAML file so plan values stay
// externally configurable without a rebuild.
//
// File format:
//
//	plans:
//	  free:
//	    id: free
//	    name: Free
//	    period: monthly
//	    limits:
//	      invoices: 5
//	      expenses: 5
type YAMLSource struct {
	path string
}

// NewYAMLSource creates a source that reads the catalog from path on Load.
func NewYAMLSource(path string) *YAMLSource {
	return &YAMLSource{path: path}
}

func (s *YAMLSource) Load(_ context.Context) (map[string]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog %s: %w", s.path, err)
	}

	var doc struct {
		Plans map[string]Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse plan catalog %s: %w", s.path, err)
	}

	// Allow the map key to stand in for an omitted id field.
	for id, plan := range doc.Plans {
		if plan.ID == "" {
			plan.ID = id
			doc.Plans[id] = plan
		}
	}
	return doc.Plans, nil
}
