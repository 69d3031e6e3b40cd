package dto

// StatsQuery is the raw filter from the stats endpoint. At most one of
// the three should be set; all empty means all-time. The isoweek rule is
// registered by the stats service.
type StatsQuery struct {
	Month string `form:"month" validate:"omitempty,datetime=2006-01"`
	Week  string `form:"week" validate:"omitempty,isoweek"`
	Year  string `form:"year" validate:"omitempty,number,len=4"`
}

// TimeBucket is one day of the opened/closed series.
type TimeBucket struct {
	Date   string `json:"date"`
	Opened int    `json:"opened"`
	Closed int    `json:"closed"`
}

// SLAStats summarises breach compliance over the filtered set.
type SLAStats struct {
	Breached       int     `json:"breached"`
	OnTime         int     `json:"onTime"`
	ComplianceRate float64 `json:"complianceRate"`
}

// StatsAnalytics carries the headline groups for dashboard cards.
type StatsAnalytics struct {
	TopCategory  string `json:"topCategory"`
	TopPriority  string `json:"topPriority"`
	YearAnalyzed int    `json:"yearAnalyzed"`
}

// TicketStatsResponse is the aggregated dashboard payload.
type TicketStatsResponse struct {
	TotalTickets    int            `json:"totalTickets"`
	ByStatus        map[string]int `json:"byStatus"`
	ByCategory      map[string]int `json:"byCategory"`
	ByPriority      map[string]int `json:"byPriority"`
	TicketsOverTime []TimeBucket   `json:"ticketsOverTime"`
	SLAStats        SLAStats       `json:"slaStats"`
	Analytics       StatsAnalytics `json:"analytics"`
}
