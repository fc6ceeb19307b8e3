// Package hours decides whether a pickup window falls inside the published
// operating hours of its location. The check fails open: when no schedule is
// configured or the data is malformed, the pickup counts as inside hours,
// because a wrongly sent reminder is cheaper than a silently dropped one.
//
// Both the dispatcher and the admin issues view call this function, so the
// two stay consistent.
package hours

import (
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
)

type Reason string

const (
	ReasonInsideHours   Reason = "inside_hours"
	ReasonOutsideHours  Reason = "outside_hours"
	ReasonDayClosed     Reason = "day_closed"
	ReasonNoSchedule    Reason = "no_schedule"
	ReasonScheduleError Reason = "schedule_error"
)

// Decision is the explicit result of the eligibility check. The fail-open
// default is a visible branch here, not an exception handler.
type Decision struct {
	Eligible bool
	Reason   Reason
}

// Check reports whether the [earliest, latest] pickup window lies inside the
// location's open hours. The window is outside hours if either endpoint falls
// outside that day's open interval or the day is marked closed.
func Check(earliest, latest time.Time, schedules []model.LocationSchedule) Decision {
	if len(schedules) == 0 {
		return Decision{Eligible: true, Reason: ReasonNoSchedule}
	}

	first := checkInstant(earliest, schedules)
	second := checkInstant(latest, schedules)

	for _, d := range []Decision{first, second} {
		if d.Reason == ReasonDayClosed || d.Reason == ReasonOutsideHours {
			return d
		}
	}

	// Fail-open reasons (no matching version, malformed window) win only
	// when neither side is decisively outside.
	if first.Reason != ReasonInsideHours {
		return first
	}
	if second.Reason != ReasonInsideHours {
		return second
	}

	return Decision{Eligible: true, Reason: ReasonInsideHours}
}

func checkInstant(t time.Time, schedules []model.LocationSchedule) Decision {
	version := resolveVersion(t, schedules)
	if len(version) == 0 {
		return Decision{Eligible: true, Reason: ReasonNoSchedule}
	}

	var day *model.LocationSchedule
	for i := range version {
		if version[i].Weekday == int(t.Weekday()) {
			day = &version[i]
			break
		}
	}

	// A weekday absent from the published version means the location does
	// not open that day.
	if day == nil || day.Closed {
		return Decision{Eligible: false, Reason: ReasonDayClosed}
	}

	if day.OpenMinute < 0 || day.CloseMinute > 24*60 || day.OpenMinute >= day.CloseMinute {
		return Decision{Eligible: true, Reason: ReasonScheduleError}
	}

	minute := t.Hour()*60 + t.Minute()
	if minute < day.OpenMinute || minute > day.CloseMinute {
		return Decision{Eligible: false, Reason: ReasonOutsideHours}
	}

	return Decision{Eligible: true, Reason: ReasonInsideHours}
}

// resolveVersion picks the schedule rows whose date range contains t's date.
func resolveVersion(t time.Time, schedules []model.LocationSchedule) []model.LocationSchedule {
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	var version []model.LocationSchedule
	for _, s := range schedules {
		if !date.Before(truncateDay(s.StartDate)) && !date.After(truncateDay(s.EndDate)) {
			version = append(version, s)
		}
	}

	return version
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
