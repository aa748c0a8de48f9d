// Package budget enforces per-agent token/cost/invocation caps over a
// calendar period (spec.md §4.5). Period boundaries are computed against the
// budget's configured IANA timezone so "daily" means the agent owner's
// calendar day, not UTC midnight.
package budget

import (
	"time"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// Window returns the half-open [start, end) boundary containing now for the
// given period, in loc. daily = calendar day, weekly = Monday 00:00 local,
// monthly = 1st 00:00 local.
func Window(period model.BudgetPeriod, now time.Time, loc *time.Location) (start, end time.Time) {
	local := now.In(loc)

	switch period {
	case model.BudgetDaily:
		start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 1)

	case model.BudgetWeekly:
		dayOfWeek := int(local.Weekday())
		// time.Weekday: Sunday=0 ... Saturday=6. Monday-anchored offset.
		offset := (dayOfWeek + 6) % 7
		monday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -offset)
		start = monday
		end = start.AddDate(0, 0, 7)

	case model.BudgetMonthly:
		start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0)

	default:
		start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 1)
	}

	return start.UTC(), end.UTC()
}

// ResolveLocation parses a Budget's Timezone field, defaulting to UTC for an
// empty value and falling back to UTC if the zone name is unrecognized.
func ResolveLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
