package knowledge

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

type fileReport struct {
	Path          string         `yaml:"path"`
	Language      string         `yaml:"language"`
	Imports       []string       `yaml:"imports,omitempty"`
	UnusedImports []string       `yaml:"unused_imports,omitempty"`
	Functions     []string       `yaml:"functions,omitempty"`
	Variables     []string       `yaml:"variables,omitempty"`
	Concepts      map[string]int `yaml:"concepts,omitempty"`
	LastModified  time.Time      `yaml:"last_modified"`
}

type knowledgeReport struct {
	Files            []fileReport   `yaml:"files"`
	Libraries        []string       `yaml:"libraries"`
	Functions        []string       `yaml:"functions"`
	Concepts         map[string]int `yaml:"concepts"`
	AssignmentLoaded bool           `yaml:"assignment_loaded"`
}

// Report renders the store contents as a YAML knowledge map
func Report(store *Store) ([]byte, error) {
	agg := store.Aggregate()

	r := knowledgeReport{
		Libraries:        setToSorted(agg.Libraries),
		Functions:        setToSorted(agg.Functions),
		Concepts:         agg.Concepts,
		AssignmentLoaded: agg.AssignmentPrompt != "",
	}
	for _, f := range store.Files() {
		r.Files = append(r.Files, fileReport{
			Path:          f.Path,
			Language:      f.Language,
			Imports:       f.Imports,
			UnusedImports: f.UnusedImports,
			Functions:     f.Functions,
			Variables:     f.Variables,
			Concepts:      f.Concepts,
			LastModified:  f.LastModified,
		})
	}

	out, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal knowledge report: %w", err)
	}
	return out, nil
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
