// Package lifecycle orchestrates the lead state machine: submission, token
// redemption, comparison snapshot materialization, opt-out, purge and
// aggregate stats.
package lifecycle

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vpncompare/internal/catalog"
	"github.com/sells-group/vpncompare/internal/engine"
	mailer "github.com/sells-group/vpncompare/internal/mail"
	"github.com/sells-group/vpncompare/internal/model"
	"github.com/sells-group/vpncompare/internal/pricing"
	"github.com/sells-group/vpncompare/internal/store"
)

// Entity kinds owned by the lifecycle. Leads and both token kinds are
// indexed; the token indexes exist so a purge can sweep tokens bound to a
// deleted lead.
const (
	KindLead              = "lead"
	KindVerificationToken = "verification_token"
	KindOptOutToken       = "optout_token"
	KindComparison        = "comparison"
)

const (
	verificationTTL = 7 * 24 * time.Hour
	sampleSeats     = 250

	// Leads whose company name contains this marker are excluded from all
	// aggregates.
	testMarker = "[test]"

	sweepPageSize = 200
)

// Service implements the lead lifecycle over the entity store.
type Service struct {
	store         store.Store
	leads         store.Collection[model.Lead]
	verifications store.Collection[model.VerificationToken]
	optOuts       store.Collection[model.OptOutToken]
	snapshots     store.Collection[model.ComparisonSnapshot]
	catalog       *catalog.Catalog
	resolver      *pricing.Resolver
	sender        mailer.Sender
	baseURL       string

	now func() time.Time
}

// NewService wires a Service. baseURL is the public prefix for verification
// and opt-out links.
func NewService(st store.Store, cat *catalog.Catalog, res *pricing.Resolver, sender mailer.Sender, baseURL string) *Service {
	return &Service{
		store: st,
		leads: store.NewCollectionWith(st, KindLead, func() model.Lead {
			return model.Lead{Status: model.LeadStatusPending, ContactAllowed: true}
		}),
		verifications: store.NewCollection[model.VerificationToken](st, KindVerificationToken),
		optOuts:       store.NewCollection[model.OptOutToken](st, KindOptOutToken),
		snapshots:     store.NewCollection[model.ComparisonSnapshot](st, KindComparison),
		catalog:       cat,
		resolver:      res,
		sender:        sender,
		baseURL:       strings.TrimRight(baseURL, "/"),
		now:           time.Now,
	}
}

// SubmitInput carries a prospect's submission.
type SubmitInput struct {
	CompanyName  string          `json:"company_name"`
	ContactName  string          `json:"contact_name"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	Seats        int             `json:"seats"`
	VPNStatus    model.VPNStatus `json:"vpn_status"`
	BudgetRange  string          `json:"budget_range"`
	Timing       model.Timing    `json:"timing"`
	ConsentGiven bool            `json:"consent_given"`
}

// SubmitResult is returned to the caller, which forwards the verification
// token to the delivery collaborator.
type SubmitResult struct {
	LeadID            string `json:"lead_id"`
	VerificationToken string `json:"verification_token"`
}

func validateSubmit(in SubmitInput) error {
	var fields []FieldError
	if strings.TrimSpace(in.CompanyName) == "" {
		fields = append(fields, FieldError{"company_name", "is required"})
	}
	if strings.TrimSpace(in.Email) == "" {
		fields = append(fields, FieldError{"email", "is required"})
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		fields = append(fields, FieldError{"email", "is invalid"})
	}
	if in.Seats < 1 {
		fields = append(fields, FieldError{"seats", "must be a positive integer"})
	}
	switch in.VPNStatus {
	case "", model.VPNStatusActive, model.VPNStatusReplacing, model.VPNStatusNone:
	default:
		fields = append(fields, FieldError{"vpn_status", "must be active, replacing or none"})
	}
	switch in.Timing {
	case "", model.TimingImmediate, model.TimingThreeMo, model.TimingSixMo, model.TimingPlanning:
	default:
		fields = append(fields, FieldError{"timing", "must be immediate, 3_months, 6_months or planning"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Submit validates and persists a new pending lead, mints its verification
// and opt-out tokens and hands the verification link to the mail
// collaborator. Delivery failure is recorded on the lead and never blocks
// the submission.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if err := validateSubmit(in); err != nil {
		return nil, err
	}

	now := s.now()
	lead := model.Lead{
		ID:             uuid.NewString(),
		CompanyName:    strings.TrimSpace(in.CompanyName),
		ContactName:    strings.TrimSpace(in.ContactName),
		Email:          strings.TrimSpace(in.Email),
		Phone:          strings.TrimSpace(in.Phone),
		Seats:          in.Seats,
		VPNStatus:      in.VPNStatus,
		BudgetRange:    in.BudgetRange,
		Timing:         in.Timing,
		ConsentGiven:   in.ConsentGiven,
		CreatedAt:      now.UnixMilli(),
		Status:         model.LeadStatusPending,
		ContactAllowed: true,
	}
	if err := s.leads.Create(ctx, lead.ID, lead); err != nil {
		return nil, unavailable(err)
	}

	verifyToken := uuid.NewString()
	if err := s.verifications.Create(ctx, verifyToken, model.VerificationToken{
		LeadID:    lead.ID,
		ExpiresAt: now.Add(verificationTTL).UnixMilli(),
	}); err != nil {
		return nil, unavailable(err)
	}

	optOutToken := uuid.NewString()
	if err := s.optOuts.Create(ctx, optOutToken, model.OptOutToken{
		LeadID:    lead.ID,
		CreatedAt: now.UnixMilli(),
	}); err != nil {
		return nil, unavailable(err)
	}

	emailStatus := model.EmailStatusSent
	err := s.sender.SendVerification(
		lead.Email,
		lead.ContactName,
		s.baseURL+"/api/verify/"+verifyToken,
		s.baseURL+"/api/optout/"+optOutToken,
	)
	if err != nil {
		emailStatus = model.EmailStatusFailed
		zap.L().Warn("lifecycle: verification mail failed",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
	}
	if err := s.leads.Patch(ctx, lead.ID, map[string]any{"email_status": emailStatus}); err != nil {
		zap.L().Warn("lifecycle: recording email status failed",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
	}

	zap.L().Info("lifecycle: lead submitted",
		zap.String("lead_id", lead.ID),
		zap.String("company", lead.CompanyName),
		zap.Int("seats", lead.Seats),
	)
	return &SubmitResult{LeadID: lead.ID, VerificationToken: verifyToken}, nil
}

// RedeemVerification confirms the lead bound to the token and materializes
// its comparison snapshot. Re-redemption after confirmation returns the
// already-created snapshot id without recomputation.
func (s *Service) RedeemVerification(ctx context.Context, token string) (string, error) {
	ok, err := s.verifications.Exists(ctx, token)
	if err != nil {
		return "", unavailable(err)
	}
	if !ok {
		return "", eris.Wrap(ErrNotFound, "verification token")
	}
	tok, err := s.verifications.Get(ctx, token)
	if err != nil {
		return "", unavailable(err)
	}
	if s.now().UnixMilli() > tok.ExpiresAt {
		return "", eris.Wrap(ErrTokenExpired, "verification token")
	}

	ok, err = s.leads.Exists(ctx, tok.LeadID)
	if err != nil {
		return "", unavailable(err)
	}
	if !ok {
		// Orphaned token: the lead was purged without sweeping it.
		zap.L().Warn("lifecycle: verification token bound to missing lead",
			zap.String("lead_id", tok.LeadID),
		)
		return "", eris.Wrap(ErrNotFound, "lead for verification token")
	}
	lead, err := s.leads.Get(ctx, tok.LeadID)
	if err != nil {
		return "", unavailable(err)
	}
	if lead.ComparisonID != "" {
		return lead.ComparisonID, nil
	}

	snapshot := s.buildSnapshot(ctx, uuid.NewString(), lead.ID, lead.Seats, lead.VPNStatus, lead.BudgetRange)
	if err := s.snapshots.Save(ctx, snapshot.ID, snapshot); err != nil {
		return "", unavailable(err)
	}

	applied, err := s.leads.PatchIfAbsent(ctx, lead.ID, "comparison_id", map[string]any{
		"status":        model.LeadStatusConfirmed,
		"comparison_id": snapshot.ID,
	})
	if err != nil {
		return "", unavailable(err)
	}
	if !applied {
		// Lost a concurrent redemption race: drop the orphan snapshot and
		// return the winner's id.
		if err := s.snapshots.Delete(ctx, snapshot.ID); err != nil {
			zap.L().Warn("lifecycle: orphan snapshot cleanup failed",
				zap.String("comparison_id", snapshot.ID),
				zap.Error(err),
			)
		}
		current, err := s.leads.Get(ctx, lead.ID)
		if err != nil {
			return "", unavailable(err)
		}
		if current.ComparisonID == "" {
			return "", eris.Wrapf(ErrInconsistent, "lead %s lost confirm race but has no comparison", lead.ID)
		}
		return current.ComparisonID, nil
	}

	zap.L().Info("lifecycle: lead confirmed",
		zap.String("lead_id", lead.ID),
		zap.String("comparison_id", snapshot.ID),
	)
	return snapshot.ID, nil
}

// RedeemOptOut disables contact for the lead bound to the token. Idempotent.
func (s *Service) RedeemOptOut(ctx context.Context, token string) error {
	ok, err := s.optOuts.Exists(ctx, token)
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return eris.Wrap(ErrNotFound, "opt-out token")
	}
	tok, err := s.optOuts.Get(ctx, token)
	if err != nil {
		return unavailable(err)
	}
	ok, err = s.leads.Exists(ctx, tok.LeadID)
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return eris.Wrap(ErrNotFound, "lead for opt-out token")
	}

	err = s.leads.Patch(ctx, tok.LeadID, map[string]any{
		"contact_allowed": false,
		"opted_out_at":    s.now().UnixMilli(),
	})
	if err != nil {
		return unavailable(err)
	}
	zap.L().Info("lifecycle: lead opted out", zap.String("lead_id", tok.LeadID))
	return nil
}

// GetComparison returns a persisted snapshot by id.
func (s *Service) GetComparison(ctx context.Context, id string) (*model.ComparisonSnapshot, error) {
	ok, err := s.snapshots.Exists(ctx, id)
	if err != nil {
		return nil, unavailable(err)
	}
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "comparison %s", id)
	}
	snap, err := s.snapshots.Get(ctx, id)
	if err != nil {
		return nil, unavailable(err)
	}
	return &snap, nil
}

// SampleComparison builds the synthetic demo snapshot. It runs the same
// engine path as a real redemption but is never persisted and carries the
// sample sentinel id.
func (s *Service) SampleComparison(ctx context.Context) *model.ComparisonSnapshot {
	snap := s.buildSnapshot(ctx, model.SampleComparisonID, "", sampleSeats, model.VPNStatusActive, "")
	return &snap
}

func (s *Service) buildSnapshot(ctx context.Context, id, leadID string, seats int, vpnStatus model.VPNStatus, budgetRange string) model.ComparisonSnapshot {
	results := engine.BuildResults(s.catalog.Vendors(), s.resolver.ResolveAll(ctx), seats)
	return model.ComparisonSnapshot{
		ID:      id,
		LeadID:  leadID,
		Results: results,
		Inputs: model.SnapshotInputs{
			Seats:       seats,
			VPNStatus:   vpnStatus,
			BudgetRange: budgetRange,
		},
		CreatedAt: s.now().UnixMilli(),
	}
}

// ListLeads pages through the lead collection in insertion order.
func (s *Service) ListLeads(ctx context.Context, cursor string, limit int) ([]model.Lead, string, error) {
	items, next, err := s.leads.List(ctx, cursor, limit)
	if err != nil {
		return nil, "", unavailable(err)
	}
	return items, next, nil
}

// DeleteLead purges a lead, its snapshot and every token still bound to it.
// Detected inconsistencies are logged and the cascade completes best-effort.
func (s *Service) DeleteLead(ctx context.Context, id string) error {
	ok, err := s.leads.Exists(ctx, id)
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	lead, err := s.leads.Get(ctx, id)
	if err != nil {
		return unavailable(err)
	}

	if lead.ComparisonID != "" {
		ok, err := s.snapshots.Exists(ctx, lead.ComparisonID)
		if err != nil {
			return unavailable(err)
		}
		if !ok {
			zap.L().Warn("lifecycle: confirmed lead without snapshot",
				zap.String("lead_id", id),
				zap.String("comparison_id", lead.ComparisonID),
				zap.Error(ErrInconsistent),
			)
		} else if err := s.snapshots.Delete(ctx, lead.ComparisonID); err != nil {
			return unavailable(err)
		}
	}

	if err := s.sweepTokens(ctx, KindVerificationToken, id); err != nil {
		return err
	}
	if err := s.sweepTokens(ctx, KindOptOutToken, id); err != nil {
		return err
	}

	if err := s.leads.Delete(ctx, id); err != nil {
		return unavailable(err)
	}
	zap.L().Info("lifecycle: lead purged", zap.String("lead_id", id))
	return nil
}

// sweepTokens removes every token of the given kind bound to the lead so no
// orphaned token survives a purge.
func (s *Service) sweepTokens(ctx context.Context, kind, leadID string) error {
	cursor := ""
	for {
		keys, next, err := s.store.ListKeys(ctx, kind, cursor, sweepPageSize)
		if err != nil {
			return unavailable(err)
		}
		for _, key := range keys {
			raw, err := s.store.Get(ctx, kind, key)
			if err != nil {
				return unavailable(err)
			}
			if raw == nil {
				zap.L().Warn("lifecycle: index entry without record",
					zap.String("kind", kind),
					zap.String("key", key),
					zap.Error(ErrInconsistent),
				)
				continue
			}
			var tok struct {
				LeadID string `json:"lead_id"`
			}
			if err := json.Unmarshal(raw, &tok); err != nil {
				zap.L().Warn("lifecycle: undecodable token record",
					zap.String("kind", kind),
					zap.String("key", key),
					zap.Error(err),
				)
				continue
			}
			if tok.LeadID != leadID {
				continue
			}
			if err := s.store.Delete(ctx, kind, key); err != nil {
				return unavailable(err)
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}
