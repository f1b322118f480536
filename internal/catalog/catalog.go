// Package catalog holds the static vendor comparison catalog. It is loaded
// once at process start and treated as injected, read-only configuration.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/vpncompare/internal/model"
)

//go:embed vendors.yaml
var vendorsYAML []byte

// Catalog is an ordered, read-only set of vendors.
type Catalog struct {
	vendors []model.Vendor
	byID    map[string]model.Vendor
}

// Default returns the embedded vendor catalog. The embedded data is part of
// the build, so a failure to parse it is a programming error.
func Default() *Catalog {
	c, err := Parse(vendorsYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded vendors.yaml invalid: %v", err))
	}
	return c
}

// Parse builds a Catalog from YAML vendor definitions.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Vendors []model.Vendor `yaml:"vendors"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "catalog: unmarshal")
	}
	if err := validate(doc.Vendors); err != nil {
		return nil, err
	}

	byID := make(map[string]model.Vendor, len(doc.Vendors))
	for _, v := range doc.Vendors {
		byID[v.ID] = v
	}
	return &Catalog{vendors: doc.Vendors, byID: byID}, nil
}

func validate(vendors []model.Vendor) error {
	if len(vendors) == 0 {
		return eris.New("catalog: no vendors defined")
	}
	seen := make(map[string]bool, len(vendors))
	var errs []string
	for i, v := range vendors {
		if strings.TrimSpace(v.ID) == "" {
			errs = append(errs, fmt.Sprintf("vendor %d: id is required", i))
			continue
		}
		if seen[v.ID] {
			errs = append(errs, fmt.Sprintf("vendor %s: duplicate id", v.ID))
		}
		seen[v.ID] = true
		if strings.TrimSpace(v.Name) == "" {
			errs = append(errs, fmt.Sprintf("vendor %s: name is required", v.ID))
		}
		if v.Pricing.BasePricePerMonth < 0 {
			errs = append(errs, fmt.Sprintf("vendor %s: base price must be >= 0", v.ID))
		}
		if v.Pricing.InstallationFee < 0 {
			errs = append(errs, fmt.Sprintf("vendor %s: installation fee must be >= 0", v.ID))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("catalog: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Vendors returns the vendors in catalog order.
func (c *Catalog) Vendors() []model.Vendor {
	out := make([]model.Vendor, len(c.vendors))
	copy(out, c.vendors)
	return out
}

// Get looks up a vendor by id.
func (c *Catalog) Get(id string) (model.Vendor, bool) {
	v, ok := c.byID[id]
	return v, ok
}

// Len returns the number of vendors.
func (c *Catalog) Len() int { return len(c.vendors) }

// FallbackPricing is the conservative pricing assumed for unknown vendor ids.
func FallbackPricing() model.PricingModel {
	return model.PricingModel{
		BasePricePerMonth: 25,
		IsQuoteOnly:       true,
		InstallationFee:   4000,
	}
}
