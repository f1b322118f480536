package lifecycle

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vpncompare/internal/catalog"
	"github.com/sells-group/vpncompare/internal/mail"
	"github.com/sells-group/vpncompare/internal/model"
	"github.com/sells-group/vpncompare/internal/pricing"
	"github.com/sells-group/vpncompare/internal/store"
)

// captureSender records the last delivery so tests can pull tokens out of
// the generated links.
type captureSender struct {
	to        string
	verifyURL string
	optOutURL string
	fail      bool
}

var errSMTP = eris.New("smtp down")

func (c *captureSender) SendVerification(to, _, verifyURL, optOutURL string) error {
	c.to = to
	c.verifyURL = verifyURL
	c.optOutURL = optOutURL
	if c.fail {
		return errSMTP
	}
	return nil
}

func newTestService(t *testing.T, sender mail.Sender) *Service {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	cat := catalog.Default()
	return NewService(st, cat, pricing.NewResolver(cat, st), sender, "http://test.local")
}

func validInput() SubmitInput {
	return SubmitInput{
		CompanyName:  "Muster GmbH",
		ContactName:  "Erika Musterfrau",
		Email:        "erika@muster.example",
		Seats:        120,
		VPNStatus:    model.VPNStatusReplacing,
		Timing:       model.TimingThreeMo,
		ConsentGiven: true,
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})
	ctx := context.Background()

	cases := map[string]struct {
		mutate func(*SubmitInput)
		field  string
	}{
		"missing company": {func(in *SubmitInput) { in.CompanyName = "  " }, "company_name"},
		"missing email":   {func(in *SubmitInput) { in.Email = "" }, "email"},
		"bad email":       {func(in *SubmitInput) { in.Email = "not-an-address" }, "email"},
		"zero seats":      {func(in *SubmitInput) { in.Seats = 0 }, "seats"},
		"negative seats":  {func(in *SubmitInput) { in.Seats = -5 }, "seats"},
		"bad vpn status":  {func(in *SubmitInput) { in.VPNStatus = "maybe" }, "vpn_status"},
		"bad timing":      {func(in *SubmitInput) { in.Timing = "someday" }, "timing"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Submit(ctx, in)
			ve, ok := AsValidation(err)
			require.True(t, ok, "expected validation error, got %v", err)
			require.Len(t, ve.Fields, 1)
			assert.Equal(t, tc.field, ve.Fields[0].Field)
		})
	}
}

func TestSubmit_CreatesPendingLeadAndTokens(t *testing.T) {
	sender := &captureSender{}
	svc := newTestService(t, sender)
	ctx := context.Background()

	res, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)
	require.NotEmpty(t, res.LeadID)
	require.NotEmpty(t, res.VerificationToken)

	lead, err := svc.leads.Get(ctx, res.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusPending, lead.Status)
	assert.True(t, lead.ContactAllowed)
	assert.Empty(t, lead.ComparisonID)
	assert.Equal(t, model.EmailStatusSent, lead.EmailStatus)
	assert.NotZero(t, lead.CreatedAt)

	assert.Equal(t, "erika@muster.example", sender.to)
	assert.Equal(t, "http://test.local/api/verify/"+res.VerificationToken, sender.verifyURL)
	assert.True(t, strings.HasPrefix(sender.optOutURL, "http://test.local/api/optout/"))
}

func TestSubmit_MailFailureDoesNotBlock(t *testing.T) {
	svc := newTestService(t, &captureSender{fail: true})
	ctx := context.Background()

	res, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)

	lead, err := svc.leads.Get(ctx, res.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.EmailStatusFailed, lead.EmailStatus)
}

func TestRedeemVerification_ConfirmsAndSnapshots(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})
	ctx := context.Background()

	res, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)

	compID, err := svc.RedeemVerification(ctx, res.VerificationToken)
	require.NoError(t, err)
	require.NotEmpty(t, compID)

	lead, err := svc.leads.Get(ctx, res.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusConfirmed, lead.Status)
	assert.Equal(t, compID, lead.ComparisonID)

	snap, err := svc.GetComparison(ctx, compID)
	require.NoError(t, err)
	assert.Equal(t, res.LeadID, snap.LeadID)
	assert.Equal(t, 120, snap.Inputs.Seats)
	assert.Len(t, snap.Results, catalog.Default().Len())
}

func TestRedeemVerification_Idempotent(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})
	ctx := context.Background()

	res, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)

	first, err := svc.RedeemVerification(ctx, res.VerificationToken)
	require.NoError(t, err)
	second, err := svc.RedeemVerification(ctx, res.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRedeemVerification_UnknownToken(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})

	_, err := svc.RedeemVerification(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemVerification_Expired(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})
	ctx := context.Background()

	res, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(verificationTTL + time.Hour) }
	_, err = svc.RedeemVerification(ctx, res.VerificationToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRedeemOptOut_Idempotent(t *testing.T) {
	sender := &captureSender{}
	svc := newTestService(t, sender)
	ctx := context.Background()

	res, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)
	token := strings.TrimPrefix(sender.optOutURL, "http://test.local/api/optout/")

	require.NoError(t, svc.RedeemOptOut(ctx, token))
	require.NoError(t, svc.RedeemOptOut(ctx, token))

	lead, err := svc.leads.Get(ctx, res.LeadID)
	require.NoError(t, err)
	assert.False(t, lead.ContactAllowed)
	require.NotNil(t, lead.OptedOutAt)
}

func TestRedeemOptOut_UnknownToken(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})

	err := svc.RedeemOptOut(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetComparison_Unknown(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})

	_, err := svc.GetComparison(context.Background(), "no-such-comparison")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSampleComparison_NotPersisted(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})
	ctx := context.Background()

	snap := svc.SampleComparison(ctx)
	assert.Equal(t, model.SampleComparisonID, snap.ID)
	assert.Empty(t, snap.LeadID)
	assert.Equal(t, sampleSeats, snap.Inputs.Seats)
	assert.Equal(t, model.VPNStatusActive, snap.Inputs.VPNStatus)
	assert.Len(t, snap.Results, catalog.Default().Len())

	_, err := svc.GetComparison(ctx, model.SampleComparisonID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListLeads_InsertionOrder(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		in := validInput()
		res, err := svc.Submit(ctx, in)
		require.NoError(t, err)
		ids = append(ids, res.LeadID)
	}

	leads, next, err := svc.ListLeads(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, leads, 3)
	for i, lead := range leads {
		assert.Equal(t, ids[i], lead.ID)
	}
}

func TestDeleteLead_CascadesSnapshotAndTokens(t *testing.T) {
	sender := &captureSender{}
	svc := newTestService(t, sender)
	ctx := context.Background()

	res, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)
	optOutToken := strings.TrimPrefix(sender.optOutURL, "http://test.local/api/optout/")

	compID, err := svc.RedeemVerification(ctx, res.VerificationToken)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLead(ctx, res.LeadID))

	ok, err := svc.leads.Exists(ctx, res.LeadID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.GetComparison(ctx, compID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.RedeemVerification(ctx, res.VerificationToken)
	assert.ErrorIs(t, err, ErrNotFound)
	err = svc.RedeemOptOut(ctx, optOutToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteLead_Unknown(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})

	err := svc.DeleteLead(context.Background(), "no-such-lead")
	assert.ErrorIs(t, err, ErrNotFound)
}
