// Package symtab defines the table of symbols exported to a loaded image.
package symtab

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Symbol is a named value made available to the loaded image
type Symbol struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

// Table is a list of exported symbols. It is borrowed for the duration of a
// load and must not be modified meanwhile.
type Table []Symbol

// Find returns the first symbol with the given name
func (t Table) Find(name string) (Symbol, bool) {
	for _, s := range t {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// Sorted returns a copy of the table ordered by name
func (t Table) Sorted() Table {
	ret := make(Table, len(t))
	copy(ret, t)
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

// FindSorted looks up name in a table ordered by name
func (t Table) FindSorted(name string) (Symbol, bool) {
	i := sort.Search(len(t), func(i int) bool { return t[i].Name >= name })
	if i < len(t) && t[i].Name == name {
		return t[i], true
	}
	return Symbol{}, false
}

// Names returns symbol names in table order
func (t Table) Names() []string {
	ret := make([]string, 0, len(t))
	for _, s := range t {
		ret = append(ret, s.Name)
	}
	return ret
}

// Load reads a table from YAML list of name / value pairs
func Load(r io.Reader) (Table, error) {
	var t Table
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("symtab: decode: %w", err)
	}
	seen := make(map[string]struct{}, len(t))
	for i, s := range t {
		if s.Name == "" {
			return nil, fmt.Errorf("symtab: symbol %d has no name", i)
		}
		if _, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("symtab: duplicate symbol %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return t, nil
}
