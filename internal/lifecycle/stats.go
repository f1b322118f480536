package lifecycle

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/vpncompare/internal/model"
)

const statsPageSize = 200

// statsLocation resolves the reporting timezone for day bucketing. Falls
// back to UTC when tzdata is unavailable.
func statsLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		zap.L().Warn("lifecycle: timezone unavailable, bucketing in UTC", zap.Error(err))
		return time.UTC
	}
	return loc
}

// Stats aggregates the full lead collection. Leads whose company name
// carries the test marker are excluded from every figure.
func (s *Service) Stats(ctx context.Context) (*model.AdminStats, error) {
	loc := statsLocation()
	now := s.now().In(loc)

	// Trailing 7 calendar days including today, oldest first.
	days := make([]model.DayCount, 7)
	dayIndex := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		day := now.AddDate(0, 0, i-6).Format("2006-01-02")
		days[i] = model.DayCount{Day: day}
		dayIndex[day] = i
	}

	var (
		total, pending, confirmed int
		seatSum                   int
		vpnCounts                 = map[model.VPNStatus]int{}
		vpnOrder                  []model.VPNStatus
	)

	cursor := ""
	for {
		leads, next, err := s.leads.List(ctx, cursor, statsPageSize)
		if err != nil {
			return nil, unavailable(err)
		}
		for _, lead := range leads {
			if strings.Contains(strings.ToLower(lead.CompanyName), testMarker) {
				continue
			}
			total++
			seatSum += lead.Seats
			switch lead.Status {
			case model.LeadStatusConfirmed:
				confirmed++
			default:
				pending++
			}
			if lead.VPNStatus != "" {
				if _, seen := vpnCounts[lead.VPNStatus]; !seen {
					vpnOrder = append(vpnOrder, lead.VPNStatus)
				}
				vpnCounts[lead.VPNStatus]++
			}
			day := time.UnixMilli(lead.CreatedAt).In(loc).Format("2006-01-02")
			if i, ok := dayIndex[day]; ok {
				if lead.Status == model.LeadStatusConfirmed {
					days[i].Confirmed++
				} else {
					days[i].Pending++
				}
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}

	stats := &model.AdminStats{
		Total:     total,
		Pending:   pending,
		Confirmed: confirmed,
		Last7Days: days,
	}
	if total > 0 {
		stats.ConversionRate = float64(confirmed) / float64(total)
		stats.AvgSeats = float64(seatSum) / float64(total)
	}
	// First-seen order breaks count ties deterministically.
	best := -1
	for _, vs := range vpnOrder {
		if vpnCounts[vs] > best {
			best = vpnCounts[vs]
			stats.MostCommonVPN = vs
		}
	}
	return stats, nil
}
