// Package prompt provides the catalog of drawing prompts and the rules for
// choosing today's prompt and random prompts.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultCatalog []byte

// Catalog is an ordered, immutable list of prompts.
type Catalog struct {
	prompts []string
}

type catalogFile struct {
	Prompts []string `yaml:"prompts"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic("prompt: invalid embedded catalog: " + err.Error())
	}
	return c
}

// Load reads a YAML catalog from path. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog. Blank entries are dropped.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}

	prompts := make([]string, 0, len(f.Prompts))
	for _, p := range f.Prompts {
		if p = strings.TrimSpace(p); p != "" {
			prompts = append(prompts, p)
		}
	}
	if len(prompts) == 0 {
		return nil, errors.New("parse prompt catalog: no prompts")
	}
	return &Catalog{prompts: prompts}, nil
}

// New builds a catalog from a literal list.
func New(prompts ...string) (*Catalog, error) {
	if len(prompts) == 0 {
		return nil, errors.New("prompt catalog: no prompts")
	}
	return &Catalog{prompts: append([]string(nil), prompts...)}, nil
}

// Len returns the number of prompts.
func (c *Catalog) Len() int { return len(c.prompts) }

// All returns a copy of the prompts in catalog order.
func (c *Catalog) All() []string {
	return append([]string(nil), c.prompts...)
}

// ForDate returns the prompt for the calendar day of date. Only the
// year, month and day are used, so two callers in different zones that agree
// on the date get the same prompt.
func (c *Catalog) ForDate(date time.Time) string {
	return c.prompts[DayIndex(date)%len(c.prompts)]
}

// Random returns a prompt chosen uniformly with r.
func (c *Catalog) Random(r *rand.Rand) string {
	return c.prompts[r.Intn(len(c.prompts))]
}

// DayIndex counts whole days from 1970-01-01 to the calendar day of date.
func DayIndex(date time.Time) int {
	y, m, d := date.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
	if days < 0 {
		// Keep the modulo in ForDate non-negative for pre-epoch dates.
		days = -days
	}
	return int(days)
}
