package credits

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelCost is the price of one generation with a given model.
type ModelCost struct {
	Key           string `yaml:"key" json:"key"`
	Label         string `yaml:"label" json:"label"`
	Credits       int    `yaml:"credits" json:"credits"`
	ProviderModel string `yaml:"provider_model" json:"-"`
}

// DefaultModels is the cost table used when no MODEL_COSTS_FILE is configured.
var DefaultModels = []ModelCost{
	{Key: "gpt-image-1", Label: "GPT Image", Credits: 13, ProviderModel: "gpt4o-image"},
	{Key: "flux-2", Label: "Flux 2", Credits: 5, ProviderModel: "flux-2/pro-text-to-image"},
	{Key: "nano-banana-pro", Label: "Nano Banana Pro", Credits: 5, ProviderModel: "nano-banana-pro"},
	{Key: "prunaai-fast", Label: "Pruna Fast", Credits: 2, ProviderModel: "prunaai/flux-fast"},
}

// CostTable is an immutable model key -> cost mapping.
type CostTable struct {
	byKey map[string]ModelCost
	keys  []string
}

func NewCostTable(entries []ModelCost) (*CostTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("cost table is empty")
	}
	t := &CostTable{byKey: make(map[string]ModelCost, len(entries))}
	for _, e := range entries {
		e.Key = strings.TrimSpace(e.Key)
		if e.Key == "" {
			return nil, fmt.Errorf("cost table entry without key")
		}
		if e.Credits <= 0 {
			return nil, fmt.Errorf("model %s: cost must be positive, got %d", e.Key, e.Credits)
		}
		if _, dup := t.byKey[e.Key]; dup {
			return nil, fmt.Errorf("model %s listed twice", e.Key)
		}
		if e.ProviderModel == "" {
			e.ProviderModel = e.Key
		}
		if e.Label == "" {
			e.Label = e.Key
		}
		t.byKey[e.Key] = e
		t.keys = append(t.keys, e.Key)
	}
	sort.Strings(t.keys)
	return t, nil
}

// LoadCostTable reads the cost table from a YAML file, or returns the
// defaults when path is empty.
//
//	models:
//	  - key: gpt-image-1
//	    label: GPT Image
//	    credits: 13
//	    provider_model: gpt4o-image
func LoadCostTable(path string) (*CostTable, error) {
	if path == "" {
		return NewCostTable(DefaultModels)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cost table: %w", err)
	}
	var doc struct {
		Models []ModelCost `yaml:"models"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse cost table %s: %w", path, err)
	}
	return NewCostTable(doc.Models)
}

func (t *CostTable) Lookup(key string) (ModelCost, bool) {
	c, ok := t.byKey[key]
	return c, ok
}

// Models returns every entry sorted by key.
func (t *CostTable) Models() []ModelCost {
	out := make([]ModelCost, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.byKey[k])
	}
	return out
}
