package analytics

import (
	"sort"
	"time"

	"github.com/spec-kit/crm-support/internal/domain"
	"github.com/spec-kit/crm-support/pkg/apperrors"
)

// DefaultTopAgents caps the agent leaderboard when the caller supplies no limit.
const DefaultTopAgents = 10

// Granularity selects the trend bucket width.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
	GranularityWeek Granularity = "week"
)

// Valid reports whether the granularity is a recognized value.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityHour, GranularityDay, GranularityWeek:
		return true
	}
	return false
}

func (g Granularity) truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Weeks start on Monday.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func (g Granularity) next(t time.Time) time.Time {
	switch g {
	case GranularityHour:
		return t.Add(time.Hour)
	case GranularityWeek:
		return t.AddDate(0, 0, 7)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// Options tunes dashboard computation.
type Options struct {
	TopAgents   int
	Granularity Granularity
}

// Overview summarizes the window.
type Overview struct {
	TotalTickets       int      `json:"total_tickets"`
	OpenTickets        int      `json:"open_tickets"`
	ResolvedTickets    int      `json:"resolved_tickets"`
	AvgResolutionHours *float64 `json:"avg_resolution_hours"`
	AvgCsatScore       *float64 `json:"avg_csat_score"`
}

// StatusCount is one status breakdown row. Every status appears even at zero.
type StatusCount struct {
	Status domain.TicketStatus `json:"status"`
	Count  int                 `json:"count"`
}

// PriorityCount is one priority breakdown row. Every priority appears even at zero.
type PriorityCount struct {
	Priority domain.TicketPriority `json:"priority"`
	Count    int                   `json:"count"`
}

// SlaMetrics reports breach statistics for the window.
type SlaMetrics struct {
	TotalTickets            int      `json:"total_tickets"`
	TicketsMeetingSla       int      `json:"tickets_meeting_sla"`
	TicketsBreachingSla     int      `json:"tickets_breaching_sla"`
	BreachRate              float64  `json:"breach_rate"`
	ComplianceRate          float64  `json:"compliance_rate"`
	AvgFirstResponseMinutes *float64 `json:"avg_first_response_minutes"`
	AvgResolutionHours      *float64 `json:"avg_resolution_hours"`
}

// ResponseMetrics counts tickets by first-response presence.
type ResponseMetrics struct {
	Responded        int `json:"responded"`
	AwaitingResponse int `json:"awaiting_response"`
}

// AgentPerformance is one leaderboard row.
type AgentPerformance struct {
	AgentID            string   `json:"agent_id"`
	TicketsAssigned    int      `json:"tickets_assigned"`
	TicketsResolved    int      `json:"tickets_resolved"`
	AvgResolutionHours *float64 `json:"avg_resolution_hours"`
	AvgCsatScore       *float64 `json:"avg_csat_score"`
}

// TrendPoint is one creation/resolution bucket. Buckets with no activity are
// included with zero counts.
type TrendPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Created     int       `json:"created"`
	Resolved    int       `json:"resolved"`
}

// DashboardSummary is the multi-facet aggregate for one scope and window.
type DashboardSummary struct {
	Product           string             `json:"product"`
	PeriodStart       time.Time          `json:"period_start"`
	PeriodEnd         time.Time          `json:"period_end"`
	Overview          Overview           `json:"overview"`
	TicketsByStatus   []StatusCount      `json:"tickets_by_status"`
	TicketsByPriority []PriorityCount    `json:"tickets_by_priority"`
	Sla               SlaMetrics         `json:"sla_metrics"`
	Response          ResponseMetrics    `json:"response_metrics"`
	TopAgents         []AgentPerformance `json:"top_agents"`
	Trends            []TrendPoint       `json:"trends"`
}

type agentAccumulator struct {
	assigned        int
	resolved        int
	resolutionTotal time.Duration
	resolutionCount int
	csatTotal       int
	csatCount       int
}

// ComputeDashboard reduces a pre-filtered ticket window into the dashboard
// summary. It is a pure function of its inputs: soft-deleted tickets are
// excluded upstream and no storage access happens here.
func ComputeDashboard(product string, periodStart, periodEnd time.Time, tickets []domain.Ticket, opts Options) (*DashboardSummary, error) {
	if !periodEnd.After(periodStart) {
		return nil, apperrors.NewValidationError("period_end must be after period_start", nil)
	}
	granularity := opts.Granularity
	if granularity == "" {
		granularity = GranularityDay
	}
	if !granularity.Valid() {
		return nil, apperrors.NewValidationError("unknown trend granularity", map[string]any{"granularity": granularity})
	}
	topAgents := opts.TopAgents
	if topAgents <= 0 {
		topAgents = DefaultTopAgents
	}

	statusCounts := make(map[domain.TicketStatus]int, len(domain.TicketStatuses))
	priorityCounts := make(map[domain.TicketPriority]int, len(domain.TicketPriorities))
	created := make(map[time.Time]int)
	resolvedTrend := make(map[time.Time]int)
	agents := make(map[string]*agentAccumulator)

	var (
		open            int
		resolved        int
		breached        int
		responded       int
		resolutionTotal time.Duration
		responseTotal   time.Duration
		responseCount   int
		csatTotal       int
		csatCount       int
	)

	for i := range tickets {
		t := &tickets[i]
		statusCounts[t.Status]++
		priorityCounts[t.Priority]++
		created[granularity.truncate(t.CreatedAt)]++

		if t.Status.Open() {
			open++
		}
		if t.SLABreach {
			breached++
		}
		if t.FirstResponseAt != nil {
			responded++
			responseTotal += t.FirstResponseAt.Sub(t.CreatedAt)
			responseCount++
		}
		if t.ResolvedAt != nil {
			resolved++
			resolutionTotal += t.ResolvedAt.Sub(t.CreatedAt)
			if !t.ResolvedAt.Before(periodStart) && t.ResolvedAt.Before(periodEnd) {
				resolvedTrend[granularity.truncate(*t.ResolvedAt)]++
			}
		}
		if t.CsatScore != nil {
			csatTotal += *t.CsatScore
			csatCount++
		}
		if t.AssignedTo != nil {
			acc := agents[*t.AssignedTo]
			if acc == nil {
				acc = &agentAccumulator{}
				agents[*t.AssignedTo] = acc
			}
			acc.assigned++
			if t.ResolvedAt != nil && !t.ResolvedAt.Before(periodStart) && t.ResolvedAt.Before(periodEnd) {
				acc.resolved++
				acc.resolutionTotal += t.ResolvedAt.Sub(t.CreatedAt)
				acc.resolutionCount++
			}
			if t.CsatScore != nil {
				acc.csatTotal += *t.CsatScore
				acc.csatCount++
			}
		}
	}

	total := len(tickets)

	summary := &DashboardSummary{
		Product:     product,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Overview: Overview{
			TotalTickets:       total,
			OpenTickets:        open,
			ResolvedTickets:    resolved,
			AvgResolutionHours: avgHours(resolutionTotal, resolved),
			AvgCsatScore:       avgScore(csatTotal, csatCount),
		},
		Sla: SlaMetrics{
			TotalTickets:            total,
			TicketsMeetingSla:       total - breached,
			TicketsBreachingSla:     breached,
			BreachRate:              rate(breached, total),
			ComplianceRate:          rate(total-breached, total),
			AvgFirstResponseMinutes: avgMinutes(responseTotal, responseCount),
			AvgResolutionHours:      avgHours(resolutionTotal, resolved),
		},
		Response: ResponseMetrics{
			Responded:        responded,
			AwaitingResponse: total - responded,
		},
	}

	for _, status := range domain.TicketStatuses {
		summary.TicketsByStatus = append(summary.TicketsByStatus, StatusCount{Status: status, Count: statusCounts[status]})
	}
	for _, priority := range domain.TicketPriorities {
		summary.TicketsByPriority = append(summary.TicketsByPriority, PriorityCount{Priority: priority, Count: priorityCounts[priority]})
	}

	summary.TopAgents = rankAgents(agents, topAgents)

	for bucket := granularity.truncate(periodStart); bucket.Before(periodEnd); bucket = granularity.next(bucket) {
		summary.Trends = append(summary.Trends, TrendPoint{
			BucketStart: bucket,
			Created:     created[bucket],
			Resolved:    resolvedTrend[bucket],
		})
	}

	return summary, nil
}

func rankAgents(agents map[string]*agentAccumulator, limit int) []AgentPerformance {
	ranked := make([]AgentPerformance, 0, len(agents))
	for id, acc := range agents {
		ranked = append(ranked, AgentPerformance{
			AgentID:            id,
			TicketsAssigned:    acc.assigned,
			TicketsResolved:    acc.resolved,
			AvgResolutionHours: avgHours(acc.resolutionTotal, acc.resolutionCount),
			AvgCsatScore:       avgScore(acc.csatTotal, acc.csatCount),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TicketsResolved != ranked[j].TicketsResolved {
			return ranked[i].TicketsResolved > ranked[j].TicketsResolved
		}
		return ranked[i].AgentID < ranked[j].AgentID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func avgMinutes(total time.Duration, count int) *float64 {
	if count == 0 {
		return nil
	}
	v := total.Minutes() / float64(count)
	return &v
}

func avgHours(total time.Duration, count int) *float64 {
	if count == 0 {
		return nil
	}
	v := total.Hours() / float64(count)
	return &v
}

func avgScore(total, count int) *float64 {
	if count == 0 {
		return nil
	}
	v := float64(total) / float64(count)
	return &v
}
