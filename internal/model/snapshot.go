package model

// SampleComparisonID marks the synthetic demo snapshot. It is never
// persisted; downstream consumers use it to suppress admin actions.
const SampleComparisonID = "sample"

// Scores holds the weighted component scores for one vendor.
type Scores struct {
	FeatureScore    int `json:"feature_score"`
	PriceScore      int `json:"price_score"`
	ComplianceScore int `json:"compliance_score"`
	TotalScore      int `json:"total_score"`
}

// VendorResult is one row of a comparison snapshot.
type VendorResult struct {
	VendorID   string     `json:"vendor_id"`
	VendorName string     `json:"vendor_name"`
	TCOYear1   float64    `json:"tco_year1"`
	Scores     Scores     `json:"scores"`
	Features   FeatureSet `json:"features"`
}

// SnapshotInputs captures the lead inputs a snapshot was computed from.
type SnapshotInputs struct {
	Seats       int       `json:"seats"`
	VPNStatus   VPNStatus `json:"vpn_status"`
	BudgetRange string    `json:"budget_range,omitempty"`
}

// ComparisonSnapshot is an immutable point-in-time comparison result set.
// Results are in catalog order; sorting is left to the caller.
type ComparisonSnapshot struct {
	ID        string         `json:"id"`
	LeadID    string         `json:"lead_id,omitempty"`
	Results   []VendorResult `json:"results"`
	Inputs    SnapshotInputs `json:"inputs"`
	CreatedAt int64          `json:"created_at"` // epoch ms
}
