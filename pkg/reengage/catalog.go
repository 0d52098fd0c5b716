package reengage

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dotsetgreg/dotpersona/pkg/energy"
	"github.com/dotsetgreg/dotpersona/pkg/routing"
)

type catalogFile struct {
	Topics []topicSpec `yaml:"topics"`
}

type topicSpec struct {
	ID             string   `yaml:"id"`
	Category       string   `yaml:"category"`
	Keywords       []string `yaml:"keywords,omitempty"`
	EntryLines     []string `yaml:"entry_lines,omitempty"`
	PreferredPaths []string `yaml:"preferred_paths,omitempty"`
	Stage          string   `yaml:"stage,omitempty"`
	MinEnergy      string   `yaml:"min_energy,omitempty"`
	MaxEnergy      string   `yaml:"max_energy,omitempty"`
	SuccessRate    *float64 `yaml:"success_rate,omitempty"`
}

// LoadCatalog reads a YAML topic catalog. An empty path returns the
// built-in catalog.
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topic catalog: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse topic catalog %s: %w", path, err)
	}
	return cat, nil
}

func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(f.Topics) == 0 {
		return nil, fmt.Errorf("%w: no topics", ErrInvalidCatalog)
	}
	cat := make(Catalog, 0, len(f.Topics))
	for _, spec := range f.Topics {
		t, err := spec.topic()
		if err != nil {
			return nil, fmt.Errorf("%w: topic %q: %v", ErrInvalidCatalog, spec.ID, err)
		}
		cat = append(cat, t)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

func (s topicSpec) topic() (Topic, error) {
	category, err := ParseCategory(s.Category)
	if err != nil {
		return Topic{}, err
	}
	t := Topic{
		ID:          strings.TrimSpace(s.ID),
		Category:    category,
		Keywords:    s.Keywords,
		EntryLines:  s.EntryLines,
		Stage:       StageAny,
		MinEnergy:   energy.LevelNone,
		MaxEnergy:   energy.LevelIntense,
		SuccessRate: DefaultSuccessRate,
		Freshness:   1,
	}
	if s.Stage != "" {
		t.Stage = routing.Stage(strings.ToLower(strings.TrimSpace(s.Stage)))
	}
	if s.MinEnergy != "" {
		if t.MinEnergy, err = energy.ParseLevel(s.MinEnergy); err != nil {
			return Topic{}, err
		}
	}
	if s.MaxEnergy != "" {
		if t.MaxEnergy, err = energy.ParseLevel(s.MaxEnergy); err != nil {
			return Topic{}, err
		}
	}
	for _, raw := range s.PreferredPaths {
		p, err := routing.ParsePath(raw)
		if err != nil {
			return Topic{}, err
		}
		t.PreferredPaths = append(t.PreferredPaths, p)
	}
	if s.SuccessRate != nil {
		t.SuccessRate = *s.SuccessRate
	}
	return t, nil
}

// MarshalCatalog renders a catalog in the format ParseCatalog reads.
func MarshalCatalog(cat Catalog) ([]byte, error) {
	f := catalogFile{Topics: make([]topicSpec, 0, len(cat))}
	for _, t := range cat {
		rate := t.SuccessRate
		spec := topicSpec{
			ID:          t.ID,
			Category:    string(t.Category),
			Keywords:    t.Keywords,
			EntryLines:  t.EntryLines,
			Stage:       string(t.Stage),
			MinEnergy:   t.MinEnergy.String(),
			MaxEnergy:   t.MaxEnergy.String(),
			SuccessRate: &rate,
		}
		for _, p := range t.PreferredPaths {
			spec.PreferredPaths = append(spec.PreferredPaths, p.Name())
		}
		f.Topics = append(f.Topics, spec)
	}
	out, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("marshal topic catalog: %w", err)
	}
	return out, nil
}
