package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vpncompare/internal/mail"
	"github.com/sells-group/vpncompare/internal/model"
)

func TestStats_Empty(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.ConversionRate)
	assert.Zero(t, stats.AvgSeats)
	assert.Empty(t, stats.MostCommonVPN)
	require.Len(t, stats.Last7Days, 7)
	for _, day := range stats.Last7Days {
		assert.Zero(t, day.Pending)
		assert.Zero(t, day.Confirmed)
	}
}

func seedLead(t *testing.T, svc *Service, company string, seats int, status model.LeadStatus, vpn model.VPNStatus, createdAt time.Time) {
	t.Helper()
	id := company + "-" + createdAt.Format(time.RFC3339Nano)
	err := svc.leads.Create(context.Background(), id, model.Lead{
		ID:             id,
		CompanyName:    company,
		Email:          "x@example.com",
		Seats:          seats,
		VPNStatus:      vpn,
		Status:         status,
		ContactAllowed: true,
		CreatedAt:      createdAt.UnixMilli(),
	})
	require.NoError(t, err)
}

func TestStats_Aggregates(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})
	loc := statsLocation()
	now := time.Date(2026, 3, 18, 14, 0, 0, 0, loc)
	svc.now = func() time.Time { return now }

	seedLead(t, svc, "Alpha AG", 100, model.LeadStatusConfirmed, model.VPNStatusActive, now)
	seedLead(t, svc, "Beta GmbH", 200, model.LeadStatusPending, model.VPNStatusNone, now.AddDate(0, 0, -1))
	seedLead(t, svc, "Gamma KG", 60, model.LeadStatusConfirmed, model.VPNStatusNone, now.AddDate(0, 0, -6))
	// Outside the trailing window; still counted in the totals.
	seedLead(t, svc, "Delta SE", 40, model.LeadStatusPending, model.VPNStatusActive, now.AddDate(0, 0, -30))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 2, stats.Confirmed)
	assert.InDelta(t, 0.5, stats.ConversionRate, 1e-9)
	assert.InDelta(t, 100.0, stats.AvgSeats, 1e-9)
	// active and none tie at 2; active was seen first in insertion order.
	assert.Equal(t, model.VPNStatusActive, stats.MostCommonVPN)

	require.Len(t, stats.Last7Days, 7)
	assert.Equal(t, now.AddDate(0, 0, -6).Format("2006-01-02"), stats.Last7Days[0].Day)
	assert.Equal(t, now.Format("2006-01-02"), stats.Last7Days[6].Day)
	assert.Equal(t, 1, stats.Last7Days[6].Confirmed)
	assert.Equal(t, 1, stats.Last7Days[5].Pending)
	assert.Equal(t, 1, stats.Last7Days[0].Confirmed)
	assert.Zero(t, stats.Last7Days[0].Pending)
}

func TestStats_ExcludesTestMarkedLeads(t *testing.T) {
	svc := newTestService(t, mail.NopSender{})
	loc := statsLocation()
	now := time.Date(2026, 3, 18, 14, 0, 0, 0, loc)
	svc.now = func() time.Time { return now }

	seedLead(t, svc, "Real GmbH", 50, model.LeadStatusConfirmed, model.VPNStatusActive, now)
	seedLead(t, svc, "[TEST] Probe AG", 9000, model.LeadStatusConfirmed, model.VPNStatusNone, now)
	seedLead(t, svc, "Probe [test] AG", 9000, model.LeadStatusPending, model.VPNStatusNone, now)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Confirmed)
	assert.InDelta(t, 50.0, stats.AvgSeats, 1e-9)
	assert.Equal(t, model.VPNStatusActive, stats.MostCommonVPN)
}
