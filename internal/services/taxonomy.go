package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategoryInfo is one row of the emission-category taxonomy: which GHG
// scope the category belongs to, the unit its activity data is measured
// in, a default emission factor (kg CO2e per unit), and whether the
// category denotes an avoided emission (green benefit, negative CO2e).
type CategoryInfo struct {
	Scope        int     `yaml:"scope"`
	DefaultUnit  string  `yaml:"default_unit"`
	FactorKg     float64 `yaml:"factor_kg"`
	GreenBenefit bool    `yaml:"green_benefit"`
}

type Taxonomy map[string]CategoryInfo

// defaultTaxonomy is the built-in category table. An operator can extend
// or override it with a YAML file via EMISSION_TAXONOMY_PATH.
var defaultTaxonomy = Taxonomy{
	// Scope 1 — direct combustion
	"diesel":      {Scope: 1, DefaultUnit: "liter", FactorKg: 2.68},
	"petrol":      {Scope: 1, DefaultUnit: "liter", FactorKg: 2.31},
	"natural_gas": {Scope: 1, DefaultUnit: "m3", FactorKg: 2.03},
	"heating_oil": {Scope: 1, DefaultUnit: "liter", FactorKg: 2.52},
	"fleet_fuel":  {Scope: 1, DefaultUnit: "liter", FactorKg: 2.50},
	"refrigerant": {Scope: 1, DefaultUnit: "kg", FactorKg: 1430},

	// Scope 2 — purchased energy
	"electricity":     {Scope: 2, DefaultUnit: "kwh", FactorKg: 0.42},
	"district_heat":   {Scope: 2, DefaultUnit: "kwh", FactorKg: 0.27},
	"purchased_steam": {Scope: 2, DefaultUnit: "kwh", FactorKg: 0.30},

	// Scope 3 — value chain
	"business_travel": {Scope: 3, DefaultUnit: "km", FactorKg: 0.17},
	"freight":         {Scope: 3, DefaultUnit: "tkm", FactorKg: 0.11},
	"waste":           {Scope: 3, DefaultUnit: "kg", FactorKg: 0.45},
	"water":           {Scope: 3, DefaultUnit: "m3", FactorKg: 0.34},
	"purchased_goods": {Scope: 3, DefaultUnit: "eur", FactorKg: 0.35},
	"cloud_services":  {Scope: 3, DefaultUnit: "eur", FactorKg: 0.08},

	// Avoided emissions — negative CO2e
	"solar_generation": {Scope: 2, DefaultUnit: "kwh", FactorKg: 0.42, GreenBenefit: true},
	"renewable_ppa":    {Scope: 2, DefaultUnit: "kwh", FactorKg: 0.42, GreenBenefit: true},
	"carbon_offset":    {Scope: 3, DefaultUnit: "kg", FactorKg: 1.0, GreenBenefit: true},
}

// LoadTaxonomy returns the built-in table, with entries from the YAML file
// at path merged over it when path is non-empty.
func LoadTaxonomy(path string) (Taxonomy, error) {
	out := Taxonomy{}
	for k, v := range defaultTaxonomy {
		out[k] = v
	}
	if path == "" {
		return out, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	var override map[string]CategoryInfo
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parse taxonomy file: %w", err)
	}
	for k, v := range override {
		if v.Scope < 1 || v.Scope > 3 {
			return nil, fmt.Errorf("taxonomy category %q: scope must be 1, 2 or 3", k)
		}
		out[normalizeCategory(k)] = v
	}
	return out, nil
}

func normalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	c = strings.ReplaceAll(c, " ", "_")
	c = strings.ReplaceAll(c, "-", "_")
	return c
}

// Resolve finds the taxonomy entry for a category. Unknown categories are
// not an error: they resolve to scope 3 with no factor and known=false,
// and the recorder marks the resulting row unverified_category.
func (t Taxonomy) Resolve(category string) (CategoryInfo, bool) {
	info, ok := t[normalizeCategory(category)]
	if !ok {
		return CategoryInfo{Scope: 3}, false
	}
	return info, true
}
