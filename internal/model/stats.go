package model

// DayCount is one calendar-day bucket of the trailing stats window.
type DayCount struct {
	Day       string `json:"day"` // YYYY-MM-DD in the reference time zone
	Pending   int    `json:"pending"`
	Confirmed int    `json:"confirmed"`
}

// AdminStats is the derived, read-only aggregate view over the lead
// collection. Sample and test-marked leads are excluded.
type AdminStats struct {
	Total           int        `json:"total"`
	Pending         int        `json:"pending"`
	Confirmed       int        `json:"confirmed"`
	ConversionRate  float64    `json:"conversion_rate"`
	AvgSeats        float64    `json:"avg_seats"`
	MostCommonVPN   VPNStatus  `json:"most_common_vpn,omitempty"`
	Last7Days       []DayCount `json:"last_7_days"`
}
