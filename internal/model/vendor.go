package model

// FeatureSet is the fixed six-flag capability matrix scored by the engine.
type FeatureSet struct {
	ZeroTrust         bool `json:"zero_trust" yaml:"zero_trust"`
	MFA               bool `json:"mfa" yaml:"mfa"`
	SSOIntegration    bool `json:"sso_integration" yaml:"sso_integration"`
	AuditLogging      bool `json:"audit_logging" yaml:"audit_logging"`
	SiteToSite        bool `json:"site_to_site" yaml:"site_to_site"`
	CentralManagement bool `json:"central_management" yaml:"central_management"`
}

// Flags returns the capability flags in their fixed declaration order.
func (f FeatureSet) Flags() [6]bool {
	return [6]bool{
		f.ZeroTrust, f.MFA, f.SSOIntegration,
		f.AuditLogging, f.SiteToSite, f.CentralManagement,
	}
}

// PricingModel is the resolved per-vendor pricing used for TCO.
type PricingModel struct {
	BasePricePerMonth float64 `json:"base_price_per_month" yaml:"base_price_per_month"`
	IsQuoteOnly       bool    `json:"is_quote_only" yaml:"is_quote_only"`
	InstallationFee   float64 `json:"installation_fee" yaml:"installation_fee"`
}

// Vendor is one entry of the static comparison catalog.
type Vendor struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Features     FeatureSet   `json:"features" yaml:"features"`
	BSIQualified bool         `json:"bsi_qualified" yaml:"bsi_qualified"`
	Pricing      PricingModel `json:"pricing" yaml:"pricing"`
}

// PricingOverride is an admin-supplied replacement for a vendor's base price
// and quote-only flag. The installation fee is never overridden.
type PricingOverride struct {
	BasePricePerMonth float64 `json:"base_price_per_month"`
	IsQuoteOnly       bool    `json:"is_quote_only"`
	UpdatedAt         int64   `json:"updated_at"` // epoch ms
}

// VendorPricing pairs a vendor with its resolved pricing for the admin view.
type VendorPricing struct {
	VendorID   string       `json:"vendor_id"`
	VendorName string       `json:"vendor_name"`
	Pricing    PricingModel `json:"pricing"`
	Overridden bool         `json:"overridden"`
}
