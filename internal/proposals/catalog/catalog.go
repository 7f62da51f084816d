// Package catalog holds the priced package tiers and care plan names.
package catalog

import (
	_ "embed"
	"fmt"

	projectdomain "agency_portal_backend/internal/projects/domain"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Tier is one sellable website package.
type Tier struct {
	Name     string   `yaml:"name"`
	Price    int64    `yaml:"price"`
	Timeline string   `yaml:"timeline"`
	Features []string `yaml:"features"`
}

type CarePlan struct {
	Name string `yaml:"name"`
}

// Catalog maps package and plan keys to their definitions.
type Catalog struct {
	Packages  map[string]Tier     `yaml:"packages"`
	CarePlans map[string]CarePlan `yaml:"care_plans"`
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse reads a catalog document and checks that every package tier is
// priced.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for _, pkg := range projectdomain.Packages() {
		tier, ok := c.Packages[string(pkg)]
		if !ok {
			return nil, fmt.Errorf("catalog is missing package %q", pkg)
		}
		if tier.Price <= 0 {
			return nil, fmt.Errorf("catalog package %q has no price", pkg)
		}
	}
	return &c, nil
}

// Tier returns the definition of pkg.
func (c *Catalog) Tier(pkg projectdomain.Package) (Tier, bool) {
	t, ok := c.Packages[string(pkg)]
	return t, ok
}

// PlanName returns the display name of a care plan, or the key itself.
func (c *Catalog) PlanName(plan string) string {
	if p, ok := c.CarePlans[plan]; ok && p.Name != "" {
		return p.Name
	}
	return plan
}
