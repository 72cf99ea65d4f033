package catalogs

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxStack applies to any item kind the catalog does not list.
const DefaultMaxStack = 64

type ItemDef struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"` // "CURRENCY","MATERIAL","FOOD","TOOL"
	MaxStack int    `yaml:"max_stack"`
}

type Catalogs struct {
	Items map[string]ItemDef
}

type itemFile struct {
	Items []ItemDef `yaml:"items"`
}

func Load(path string) (*Catalogs, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f itemFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("items.yaml: %w", err)
	}
	c := &Catalogs{Items: map[string]ItemDef{}}
	for _, def := range f.Items {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			continue
		}
		if def.MaxStack <= 0 {
			def.MaxStack = DefaultMaxStack
		}
		def.ID = id
		c.Items[id] = def
	}
	return c, nil
}

// Known reports whether the item id is listed in the catalog.
func (c *Catalogs) Known(item string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Items[item]
	return ok
}

// MaxStack returns the stack cap for an item kind, DefaultMaxStack when the
// kind is not cataloged.
func (c *Catalogs) MaxStack(item string) int {
	if c == nil {
		return DefaultMaxStack
	}
	if def, ok := c.Items[item]; ok {
		return def.MaxStack
	}
	return DefaultMaxStack
}

func (c *Catalogs) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Items))
	for id := range c.Items {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
