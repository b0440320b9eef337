package sla

import (
	"time"

	"github.com/spec-kit/crm-support/internal/domain"
)

// Policy supplies the externally defined SLA thresholds. Thresholds are
// configuration input, not computed here.
type Policy struct {
	FirstResponseMax time.Duration
	ResolutionMax    time.Duration
}

// Evaluate reports whether the ticket is in breach of the policy as of now.
//
// Breach is a persisted historical fact: once a ticket carries the breach
// flag the result stays true regardless of later milestones. A ticket
// breaches when its first response or resolution is overdue, or when a
// recorded milestone landed later than its threshold after creation.
func Evaluate(t *domain.Ticket, p Policy, now time.Time) bool {
	if t.SLABreach {
		return true
	}
	age := now.Sub(t.CreatedAt)

	if t.FirstResponseAt == nil {
		if age > p.FirstResponseMax {
			return true
		}
	} else if t.FirstResponseAt.Sub(t.CreatedAt) > p.FirstResponseMax {
		return true
	}

	if t.ResolvedAt == nil {
		if age > p.ResolutionMax {
			return true
		}
	} else if t.ResolvedAt.Sub(t.CreatedAt) > p.ResolutionMax {
		return true
	}

	return false
}
