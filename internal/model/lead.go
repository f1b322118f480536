package model

// LeadStatus represents the lifecycle state of a lead.
type LeadStatus string

const (
	LeadStatusPending   LeadStatus = "pending"
	LeadStatusConfirmed LeadStatus = "confirmed"
)

// VPNStatus describes the prospect's current VPN situation.
type VPNStatus string

const (
	VPNStatusActive    VPNStatus = "active"
	VPNStatusReplacing VPNStatus = "replacing"
	VPNStatusNone      VPNStatus = "none"
)

// Timing describes the prospect's purchase horizon.
type Timing string

const (
	TimingImmediate Timing = "immediate"
	TimingThreeMo   Timing = "3_months"
	TimingSixMo     Timing = "6_months"
	TimingPlanning  Timing = "planning"
)

// EmailStatus records the outcome of the verification mail delivery attempt.
type EmailStatus string

const (
	EmailStatusSent   EmailStatus = "sent"
	EmailStatusFailed EmailStatus = "failed"
)

// Lead is a company/contact submission. The status transition
// pending -> confirmed happens only via verification-token redemption and is
// monotonic; ComparisonID is set at most once, together with that transition.
type Lead struct {
	ID             string      `json:"id"`
	CompanyName    string      `json:"company_name"`
	ContactName    string      `json:"contact_name,omitempty"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone,omitempty"`
	Seats          int         `json:"seats"`
	VPNStatus      VPNStatus   `json:"vpn_status"`
	BudgetRange    string      `json:"budget_range,omitempty"`
	Timing         Timing      `json:"timing,omitempty"`
	ConsentGiven   bool        `json:"consent_given"`
	CreatedAt      int64       `json:"created_at"` // epoch ms
	Status         LeadStatus  `json:"status"`
	ContactAllowed bool        `json:"contact_allowed"`
	EmailStatus    EmailStatus `json:"email_status,omitempty"`
	OptedOutAt     *int64      `json:"opted_out_at,omitempty"` // epoch ms
	ComparisonID   string      `json:"comparison_id,omitempty"`
}

// VerificationToken maps an opaque token id to a lead and an expiry.
// It is not deleted on successful redemption; re-redemption returns the
// already-materialized comparison id (see DESIGN.md).
type VerificationToken struct {
	LeadID    string `json:"lead_id"`
	ExpiresAt int64  `json:"expires_at"` // epoch ms
}

// OptOutToken maps an opaque token id to a lead. It never expires and its
// redemption is idempotent.
type OptOutToken struct {
	LeadID    string `json:"lead_id"`
	CreatedAt int64  `json:"created_at"` // epoch ms
}
