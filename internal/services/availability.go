package services

import (
	"fmt"
	"time"

	"restaurant_pos/internal/models"

	"github.com/go-playground/validator/v10"
)

const slotDateLayout = "2006-01-02"

var validate = validator.New()

// Period is a named seating window of the day, [StartHour, EndHour).
type Period struct {
	Name      string `yaml:"name" json:"name" validate:"required"`
	StartHour int    `yaml:"start_hour" json:"start_hour" validate:"gte=0,lte=23"`
	EndHour   int    `yaml:"end_hour" json:"end_hour" validate:"gtfield=StartHour,lte=24"`
}

// SlotRules holds the tunables of the slot calculator.
type SlotRules struct {
	OpeningHour   int            `yaml:"opening_hour" validate:"gte=0,lte=23"`
	ClosingHour   int            `yaml:"closing_hour" validate:"gtfield=OpeningHour,lte=24"`
	SlotMinutes   int            `yaml:"slot_minutes" validate:"gt=0,lte=60"`
	LeadMinutes   int            `yaml:"lead_minutes" validate:"gte=0"`
	BoundaryBleed time.Duration  `yaml:"boundary_bleed" validate:"gte=0"`
	Periods       []Period       `yaml:"periods" validate:"required,min=1,dive"`
	Location      *time.Location `yaml:"-" validate:"-"`
}

// DefaultSlotRules returns the house defaults: 07:00 to 22:00 in 30 minute steps
// and four seating periods.
func DefaultSlotRules() SlotRules {
	return SlotRules{
		OpeningHour:   7,
		ClosingHour:   22,
		SlotMinutes:   30,
		LeadMinutes:   30,
		BoundaryBleed: time.Hour,
		Periods: []Period{
			{Name: "morning", StartHour: 7, EndHour: 11},
			{Name: "noon", StartHour: 11, EndHour: 14},
			{Name: "afternoon", StartHour: 14, EndHour: 18},
			{Name: "evening", StartHour: 18, EndHour: 22},
		},
	}
}

// Validate checks field ranges and that periods are ordered and do not overlap.
func (r SlotRules) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for i := 1; i < len(r.Periods); i++ {
		if r.Periods[i].StartHour < r.Periods[i-1].EndHour {
			return fmt.Errorf("%w: period %q overlaps %q", ErrValidation, r.Periods[i].Name, r.Periods[i-1].Name)
		}
	}
	return nil
}

// TimeSlot is a bookable time of day.
type TimeSlot struct {
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Label  string `json:"label"`
	Period string `json:"period,omitempty"`
}

func (s TimeSlot) minuteOfDay() int { return s.Hour*60 + s.Minute }

func (r SlotRules) periodIndex(minuteOfDay int) int {
	for i, p := range r.Periods {
		if minuteOfDay >= p.StartHour*60 && minuteOfDay < p.EndHour*60 {
			return i
		}
	}
	return -1
}

// AvailableSlots lists the bookable slots of table on date (YYYY-MM-DD in the
// restaurant's location). It has no side effects.
func AvailableSlots(table models.Table, date string, now time.Time, rules SlotRules) ([]TimeSlot, error) {
	loc := rules.Location
	if loc == nil {
		loc = now.Location()
	}
	day, err := time.ParseInLocation(slotDateLayout, date, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, date)
	}
	if rules.SlotMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot length must be positive", ErrValidation)
	}

	localNow := now.In(loc)
	isToday := localNow.Format(slotDateLayout) == date

	excluded := make(map[int]bool)
	for _, res := range table.Reservations {
		if res.Status == models.ReservationStatusCancelled {
			continue
		}
		at := res.ReservationTime.In(loc)
		if at.Format(slotDateLayout) != date {
			continue
		}
		idx := rules.periodIndex(at.Hour()*60 + at.Minute())
		if idx < 0 {
			continue
		}
		excluded[idx] = true
		periodEnd := time.Date(day.Year(), day.Month(), day.Day(), rules.Periods[idx].EndHour, 0, 0, 0, loc)
		if periodEnd.Sub(at) <= rules.BoundaryBleed && idx+1 < len(rules.Periods) {
			excluded[idx+1] = true
		}
	}

	slots := []TimeSlot{}
	for m := rules.OpeningHour * 60; m < rules.ClosingHour*60; m += rules.SlotMinutes {
		slot := TimeSlot{Hour: m / 60, Minute: m % 60}
		if isToday && !slotAfterLead(slot, localNow, rules.LeadMinutes) {
			continue
		}
		idx := rules.periodIndex(slot.minuteOfDay())
		if idx >= 0 {
			if excluded[idx] {
				continue
			}
			slot.Period = rules.Periods[idx].Name
		}
		slot.Label = fmt.Sprintf("%02d:%02d", slot.Hour, slot.Minute)
		slots = append(slots, slot)
	}
	return slots, nil
}

// slotAfterLead keeps a slot in a later hour, or in the current hour when its
// minute is more than lead minutes past now's minute.
func slotAfterLead(slot TimeSlot, now time.Time, lead int) bool {
	if slot.Hour > now.Hour() {
		return true
	}
	return slot.Hour == now.Hour() && slot.Minute-now.Minute() > lead
}
