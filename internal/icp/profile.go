// Package icp scores discovered candidates against the ideal customer
// profile: a weighted table of industries, locations, company sizes, and
// keyword signals with an admission threshold.
package icp

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed default_profile.yaml
var defaultProfile []byte

// SizeBand awards points to companies at or under an employee ceiling.
// Bands are matched smallest ceiling first.
type SizeBand struct {
	MaxEmployees int     `yaml:"max_employees"`
	Points       float64 `yaml:"points"`
}

// Profile is a weighted ideal-customer scoring configuration.
type Profile struct {
	// Threshold is the minimum score a candidate needs to be admitted.
	Threshold float64 `yaml:"threshold"`

	Industries map[string]float64 `yaml:"industries"`
	Locations  map[string]float64 `yaml:"locations"`

	SizeBands []SizeBand `yaml:"size_bands"`
	// SizeOverflow is awarded above the largest band's ceiling.
	SizeOverflow float64 `yaml:"size_overflow_points"`

	PainPoints  []string `yaml:"pain_points"`
	TechSignals []string `yaml:"tech_signals"`

	// Match tables in deterministic order, prepared by Validate.
	industryOrder []weightedKey
	locationOrder []weightedKey
}

type weightedKey struct {
	key    string
	weight float64
}

// Load reads a profile from the given YAML file, or the embedded Hawaii
// default when path is empty. The returned profile is validated.
func Load(path string) (*Profile, error) {
	raw := defaultProfile
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "icp: read profile %s", path)
		}
	}

	p := &Profile{}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, eris.Wrapf(err, "icp: parse profile")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Default returns the embedded Hawaii profile.
func Default() *Profile {
	p, err := Load("")
	if err != nil {
		// The embedded profile is compiled in; failing to parse it is a
		// build defect.
		panic(err)
	}
	return p
}

// Validate checks the profile and prepares its deterministic match order:
// weight descending, then key ascending. Scoring a profile that has not
// been validated gives empty industry and location tables.
func (p *Profile) Validate() error {
	var errs []string

	if p.Threshold < 0 || p.Threshold > 100 {
		errs = append(errs, fmt.Sprintf("threshold must be in [0,100], got %.1f", p.Threshold))
	}
	if len(p.Industries) == 0 {
		errs = append(errs, "at least one industry weight is required")
	}
	for k, w := range p.Industries {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("industry %q weight must be >= 0", k))
		}
	}
	for k, w := range p.Locations {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("location %q weight must be >= 0", k))
		}
	}
	for i, b := range p.SizeBands {
		if b.MaxEmployees <= 0 {
			errs = append(errs, fmt.Sprintf("size band %d needs a positive max_employees", i))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("icp: invalid profile: %s", strings.Join(errs, "; "))
	}

	p.industryOrder = sortWeights(p.Industries)
	p.locationOrder = sortWeights(p.Locations)
	sort.SliceStable(p.SizeBands, func(i, j int) bool {
		return p.SizeBands[i].MaxEmployees < p.SizeBands[j].MaxEmployees
	})
	return nil
}

func sortWeights(m map[string]float64) []weightedKey {
	out := make([]weightedKey, 0, len(m))
	for k, w := range m {
		out = append(out, weightedKey{key: strings.ToLower(strings.TrimSpace(k)), weight: w})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].weight == out[j].weight {
			return out[i].key < out[j].key
		}
		return out[i].weight > out[j].weight
	})
	return out
}
