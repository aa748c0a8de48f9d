package budget

import (
	"testing"
	"time"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

func TestWindow_Daily(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	start, end := Window(model.BudgetDaily, now, time.UTC)

	wantStart := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Fatalf("window = [%v, %v), want [%v, %v)", start, end, wantStart, wantEnd)
	}
}

func TestWindow_WeeklyAnchorsToMonday(t *testing.T) {
	// 2026-03-15 is a Sunday.
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	start, end := Window(model.BudgetWeekly, now, time.UTC)

	wantStart := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) // the preceding Monday
	wantEnd := wantStart.AddDate(0, 0, 7)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Fatalf("window = [%v, %v), want [%v, %v)", start, end, wantStart, wantEnd)
	}
}

func TestWindow_WeeklyOnMondayItself(t *testing.T) {
	now := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC) // a Monday
	start, _ := Window(model.BudgetWeekly, now, time.UTC)
	if !start.Equal(now) {
		t.Fatalf("start = %v, want the Monday itself (%v)", start, now)
	}
}

func TestWindow_Monthly(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	start, end := Window(model.BudgetMonthly, now, time.UTC)

	wantStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Fatalf("window = [%v, %v), want [%v, %v)", start, end, wantStart, wantEnd)
	}
}

func TestResolveLocation_EmptyDefaultsToUTC(t *testing.T) {
	if loc := ResolveLocation(""); loc != time.UTC {
		t.Fatalf("loc = %v, want UTC", loc)
	}
}

func TestResolveLocation_UnknownFallsBackToUTC(t *testing.T) {
	if loc := ResolveLocation("Not/A_Real_Zone"); loc != time.UTC {
		t.Fatalf("loc = %v, want UTC fallback for an unrecognized zone", loc)
	}
}

func TestResolveLocation_KnownZoneLoads(t *testing.T) {
	loc := ResolveLocation("America/New_York")
	if loc == time.UTC {
		t.Fatal("expected a non-UTC location for a valid IANA zone name")
	}
	if loc.String() != "America/New_York" {
		t.Fatalf("loc = %v, want America/New_York", loc)
	}
}
