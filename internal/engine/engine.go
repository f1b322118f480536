// Package engine computes TCO and weighted comparison scores. It is pure and
// deterministic: no I/O, no clock, identical inputs always produce identical
// output. Results keep catalog order; sorting is left to the caller.
package engine

import (
	"math"

	"github.com/sells-group/vpncompare/internal/model"
)

// Scoring policy constants. The weights are a fixed policy, not
// vendor-dependent, and sum to 1.
const (
	weightFeature    = 0.4
	weightPrice      = 0.4
	weightCompliance = 0.2

	// Compliance is binary on BSI qualification. The baseline is non-zero
	// so capable but uncertified vendors are not over-penalized.
	complianceCertified = 100
	complianceBaseline  = 40

	// Below this TCO spread the market counts as uniform and the price
	// score falls back to the tie-break.
	priceTieEpsilon = 0.01

	// Uniform-market tie-break: BSI qualification is the priority signal.
	tieBreakCertified = 100
	tieBreakBaseline  = 70

	featureFlagCount = 6
	contractMonths   = 12
)

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TCO computes the first-year total cost of ownership: twelve months of
// per-seat base price plus the one-time installation fee. Seats are clamped
// to a minimum of 1 so malformed input can never yield a non-positive cost.
func TCO(seats int, pricing model.PricingModel) float64 {
	if seats < 1 {
		seats = 1
	}
	return Round2(float64(seats)*pricing.BasePricePerMonth*contractMonths + pricing.InstallationFee)
}

// FeatureScore maps the fixed six-flag capability set onto 0-100.
func FeatureScore(features model.FeatureSet) int {
	count := 0
	for _, on := range features.Flags() {
		if on {
			count++
		}
	}
	return int(math.Round(100 * float64(count) / featureFlagCount))
}

// PriceScore maps a vendor's TCO onto 0-100 linearly between the market's
// cheapest (100) and most expensive (0) offer. On a uniform market the
// tie-break keeps the score total-ordered and deterministic.
func PriceScore(tco, minTCO, maxTCO float64, bsiQualified bool) int {
	spread := maxTCO - minTCO
	if spread < priceTieEpsilon {
		if bsiQualified {
			return tieBreakCertified
		}
		return tieBreakBaseline
	}
	score := math.Round(100 - 100*(tco-minTCO)/spread)
	return int(math.Min(100, math.Max(0, score)))
}

// ComplianceScore is binary on BSI qualification.
func ComplianceScore(bsiQualified bool) int {
	if bsiQualified {
		return complianceCertified
	}
	return complianceBaseline
}

// Score computes all component scores and the weighted total for one vendor.
func Score(features model.FeatureSet, bsiQualified bool, tco, minTCO, maxTCO float64) model.Scores {
	f := FeatureScore(features)
	p := PriceScore(tco, minTCO, maxTCO, bsiQualified)
	c := ComplianceScore(bsiQualified)
	total := int(math.Round(weightFeature*float64(f) + weightPrice*float64(p) + weightCompliance*float64(c)))
	return model.Scores{
		FeatureScore:    f,
		PriceScore:      p,
		ComplianceScore: c,
		TotalScore:      total,
	}
}

// BuildResults scores every vendor against the given seat count. pricing
// maps vendor id to resolved pricing; vendors missing from the map fall back
// to their catalog pricing.
func BuildResults(vendors []model.Vendor, pricing map[string]model.PricingModel, seats int) []model.VendorResult {
	if len(vendors) == 0 {
		return nil
	}

	tcos := make([]float64, len(vendors))
	minTCO := math.Inf(1)
	maxTCO := math.Inf(-1)
	for i, v := range vendors {
		p, ok := pricing[v.ID]
		if !ok {
			p = v.Pricing
		}
		tcos[i] = TCO(seats, p)
		minTCO = math.Min(minTCO, tcos[i])
		maxTCO = math.Max(maxTCO, tcos[i])
	}

	results := make([]model.VendorResult, len(vendors))
	for i, v := range vendors {
		results[i] = model.VendorResult{
			VendorID:   v.ID,
			VendorName: v.Name,
			TCOYear1:   tcos[i],
			Scores:     Score(v.Features, v.BSIQualified, tcos[i], minTCO, maxTCO),
			Features:   v.Features,
		}
	}
	return results
}
