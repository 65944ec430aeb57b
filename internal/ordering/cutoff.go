// Package ordering holds the pure rules of daily corporate ordering: the
// cutoff schedule, cart merging against an existing order, aggregation for
// managers, the approval state machine and payment selection. Nothing here
// performs I/O; callers pass the wall clock in.
package ordering

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/models"
)

var cutoffPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d):([0-5]\d)$`)

// CutoffTime is a 24-hour time of day.
type CutoffTime struct {
	Hour   int
	Minute int
	Second int
}

// ParseCutoffTime accepts only HH:MM:SS in 24-hour form.
func ParseCutoffTime(s string) (CutoffTime, error) {
	m := cutoffPattern.FindStringSubmatch(s)
	if m == nil {
		return CutoffTime{}, apperrors.Validation("order_cutoff_time",
			fmt.Sprintf("cutoff time %q must be HH:MM:SS in 24-hour format", s))
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	return CutoffTime{Hour: h, Minute: minute, Second: sec}, nil
}

func (c CutoffTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// On returns the cutoff instant on day's calendar date in day's location.
func (c CutoffTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, c.Second, 0, day.Location())
}

// Format12h renders the cutoff for display, e.g. "11:00 AM".
func (c CutoffTime) Format12h() string {
	return time.Date(2000, 1, 1, c.Hour, c.Minute, c.Second, 0, time.UTC).Format("3:04 PM")
}

// Scheduler computes delivery information for one organization's settings.
type Scheduler struct {
	cutoff CutoffTime
	window time.Duration
}

// NewScheduler validates cutoff before use; a malformed value is an error,
// never silently replaced.
func NewScheduler(cutoff string, window time.Duration) (*Scheduler, error) {
	c, err := ParseCutoffTime(cutoff)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = models.DefaultDeliveryWindowMinutes * time.Minute
	}
	return &Scheduler{cutoff: c, window: window}, nil
}

// DefaultScheduler is used when organization settings are unavailable.
func DefaultScheduler() *Scheduler {
	s, _ := NewScheduler(models.DefaultOrderCutoffTime, 0)
	return s
}

// SchedulerFor builds the scheduler for org. A nil org yields the default.
func SchedulerFor(org *models.Organization) (*Scheduler, error) {
	if org == nil {
		return DefaultScheduler(), nil
	}
	return NewScheduler(org.OrderCutoffTime, org.DeliveryWindow())
}

func (s *Scheduler) Cutoff() CutoffTime {
	return s.cutoff
}

// DeliveryInfo evaluates the schedule at now. Ordering is open strictly
// before today's cutoff; at or after it the delivery date rolls to the next
// working day. now's location defines "today".
func (s *Scheduler) DeliveryInfo(now time.Time) models.DeliveryInfo {
	cutoffAt := s.cutoff.On(now)
	info := models.DeliveryInfo{
		CutoffDateTime:      cutoffAt,
		FormattedCutoffTime: s.cutoff.Format12h(),
	}

	if now.Before(cutoffAt) {
		info.CanOrder = true
		info.DeliveryDate = startOfDay(now)
	} else {
		info.CanOrder = false
		info.DeliveryDate = NextWorkingDay(now)
	}

	info.DeliveryWindowStart = s.cutoff.On(info.DeliveryDate)
	info.DeliveryWindowEnd = info.DeliveryWindowStart.Add(s.window)
	return info
}

// OrderDates lists the delivery dates whose orders an employee still sees at
// now, most relevant first. Once ordering has closed, today's order is being
// reviewed and comes before the next delivery date.
func (s *Scheduler) OrderDates(now time.Time) []time.Time {
	info := s.DeliveryInfo(now)
	if info.CanOrder {
		return []time.Time{info.DeliveryDate}
	}
	return []time.Time{startOfDay(now), info.DeliveryDate}
}

// RequireOpen returns a CutoffClosed error when ordering is closed at now.
func (s *Scheduler) RequireOpen(now time.Time) (models.DeliveryInfo, error) {
	info := s.DeliveryInfo(now)
	if !info.CanOrder {
		return info, apperrors.CutoffClosed(info.FormattedCutoffTime)
	}
	return info, nil
}

// Location resolves the organization's timezone, falling back to fallback
// when it is unset or unknown.
func Location(org *models.Organization, fallback *time.Location) *time.Location {
	if org != nil && org.Timezone != "" {
		if loc, err := time.LoadLocation(org.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

// NextWorkingDay returns midnight of the first Monday–Friday strictly after day.
func NextWorkingDay(day time.Time) time.Time {
	next := startOfDay(day).AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
