// Package calendar expands recurring calendar events and schedules their reminders.
package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"compartilar-backend-go/internal/models"
)

// MaxOccurrences caps how many occurrences a single event contributes to a listing.
const MaxOccurrences = 500

// Occurrence is one concrete instance of a (possibly recurring) event.
type Occurrence struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func overlaps(start, end, from, to time.Time) bool {
	if !start.Before(to) {
		return false
	}
	if end.After(start) {
		return end.After(from)
	}
	return !start.Before(from)
}

var frequencies = map[string]rrule.Frequency{
	models.FrequencyDaily:   rrule.DAILY,
	models.FrequencyWeekly:  rrule.WEEKLY,
	models.FrequencyMonthly: rrule.MONTHLY,
	models.FrequencyYearly:  rrule.YEARLY,
}

// toRule builds the RFC 5545 rule for a recurring event. Monthly and yearly
// series skip periods lacking the start's day, so the 31st never drifts and
// Feb 29 only recurs in leap years.
func toRule(start time.Time, rec *models.Recurrence) (*rrule.RRule, error) {
	freq, ok := frequencies[rec.Frequency]
	if !ok {
		return nil, fmt.Errorf("unsupported frequency '%s'", rec.Frequency)
	}
	opt := rrule.ROption{
		Freq:     freq,
		Dtstart:  start,
		Interval: rec.EffectiveInterval(),
		Count:    rec.Count,
	}
	if rec.Until != nil {
		opt.Until = *rec.Until
	}
	return rrule.NewRRule(opt)
}

// Occurrences returns the instances of an event that overlap [from, to).
// Non-recurring events yield at most one occurrence.
func Occurrences(start, end time.Time, rec *models.Recurrence, from, to time.Time) []Occurrence {
	if end.Before(start) {
		end = start
	}
	if rec == nil || rec.Frequency == "" {
		if overlaps(start, end, from, to) {
			return []Occurrence{{Start: start, End: end}}
		}
		return nil
	}

	rule, err := toRule(start, rec)
	if err != nil {
		return nil
	}
	length := end.Sub(start)
	var out []Occurrence
	next := rule.Iterator()
	for len(out) < MaxOccurrences {
		s, ok := next()
		if !ok || !s.Before(to) {
			break
		}
		e := s.Add(length)
		if overlaps(s, e, from, to) {
			out = append(out, Occurrence{Start: s, End: e})
		}
	}
	return out
}

// NextReminder returns when the next reminder for the event should fire,
// strictly after now, or nil when there is none.
func NextReminder(start, end time.Time, rec *models.Recurrence, reminder *models.Reminder, now time.Time) *time.Time {
	if reminder == nil {
		return nil
	}
	before := time.Duration(reminder.MinutesBefore) * time.Minute
	occ := start
	if rec != nil && rec.Frequency != "" {
		rule, err := toRule(start, rec)
		if err != nil {
			return nil
		}
		occ = rule.After(now.Add(before), false)
		if occ.IsZero() {
			return nil
		}
	}
	at := occ.Add(-before)
	if !at.After(now) {
		return nil
	}
	at = at.UTC()
	return &at
}
