// Package seeding turns the city/category registry into planned targets.
// Seeding is idempotent: tuples that already exist in the target table are
// skipped, so the command can re-run after registry edits.
package seeding

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/goprospect/internal/domain"
)

// Registry is the parsed seed file: which categories to search, and which
// cities in which states, with their population tiers.
type Registry struct {
	Categories []string `mapstructure:"categories"`
	States     []State  `mapstructure:"states"`
}

// State groups the cities of one state code.
type State struct {
	Code   string `mapstructure:"code"`
	Cities []City `mapstructure:"cities"`
}

// City is one seedable city. Tier maps to claim priority: tier 1 cities
// are claimed first and get the largest page budget.
type City struct {
	Name string `mapstructure:"name"`
	Tier int    `mapstructure:"tier"`
}

// LoadRegistry reads and validates a registry file. The YAML decodes
// through an intermediate map so hand-edited files with quoted numbers
// still load.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}

	reg, err := decodeRegistry(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode registry %s: %w", path, err)
	}

	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry %s: %w", path, err)
	}
	return reg, nil
}

// decodeRegistry converts the raw YAML document into a typed registry.
func decodeRegistry(raw map[string]any) (*Registry, error) {
	var reg Registry
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &reg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if decodeErr := decoder.Decode(raw); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", decodeErr)
	}

	return &reg, nil
}

// Validate checks the registry for the mistakes that would otherwise
// surface as junk targets: empty axes, bad state codes, bad tiers.
func (r *Registry) Validate() error {
	if len(r.Categories) == 0 {
		return fmt.Errorf("no categories defined")
	}
	if len(r.States) == 0 {
		return fmt.Errorf("no states defined")
	}
	for i, cat := range r.Categories {
		if strings.TrimSpace(cat) == "" {
			return fmt.Errorf("category %d is empty", i)
		}
	}
	for _, state := range r.States {
		code := strings.TrimSpace(state.Code)
		if len(code) != 2 {
			return fmt.Errorf("state code %q must be two letters", state.Code)
		}
		if len(state.Cities) == 0 {
			return fmt.Errorf("state %s has no cities", code)
		}
		for _, city := range state.Cities {
			if strings.TrimSpace(city.Name) == "" {
				return fmt.Errorf("state %s has a city with no name", code)
			}
			if city.Tier < domain.PriorityHigh || city.Tier > domain.PriorityLow {
				return fmt.Errorf("city %s/%s has tier %d, want 1-3", code, city.Name, city.Tier)
			}
		}
	}
	return nil
}

// StateCodes returns the registry's state codes, uppercased, in file order.
func (r *Registry) StateCodes() []string {
	codes := make([]string, 0, len(r.States))
	for _, s := range r.States {
		codes = append(codes, strings.ToUpper(strings.TrimSpace(s.Code)))
	}
	return codes
}
