package services

import (
	"testing"
	"time"

	"restaurant_pos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableWithReservation(at time.Time, status models.ReservationStatus) models.Table {
	return models.Table{
		ID:       1,
		Code:     "T1",
		Capacity: 4,
		Reservations: []models.Reservation{
			{ID: 1, TableID: 1, ReservationTime: at, Status: status},
		},
	}
}

func slotLabels(slots []TimeSlot) map[string]string {
	out := make(map[string]string, len(slots))
	for _, s := range slots {
		out[s.Label] = s.Period
	}
	return out
}

func TestAvailableSlots_ExcludesReservedPeriodOnly(t *testing.T) {
	rules := DefaultSlotRules()
	rules.Location = time.UTC
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	table := tableWithReservation(time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC), models.ReservationStatusConfirmed)

	slots, err := AvailableSlots(table, "2025-03-02", now, rules)
	require.NoError(t, err)
	labels := slotLabels(slots)

	for _, l := range []string{"11:00", "11:30", "12:00", "13:30"} {
		assert.NotContains(t, labels, l, "noon slot %s should be excluded", l)
	}
	assert.Equal(t, "afternoon", labels["14:00"])
	assert.Equal(t, "morning", labels["10:30"])
	assert.Contains(t, labels, "21:30")
	assert.NotContains(t, labels, "22:00")
}

func TestAvailableSlots_BoundaryBleedsIntoNextPeriod(t *testing.T) {
	rules := DefaultSlotRules()
	rules.Location = time.UTC
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	table := tableWithReservation(time.Date(2025, 3, 2, 13, 30, 0, 0, time.UTC), models.ReservationStatusPending)

	slots, err := AvailableSlots(table, "2025-03-02", now, rules)
	require.NoError(t, err)
	labels := slotLabels(slots)

	for _, l := range []string{"11:00", "13:30", "14:00", "15:30", "17:30"} {
		assert.NotContains(t, labels, l)
	}
	assert.Equal(t, "evening", labels["18:00"])
	assert.Equal(t, "morning", labels["07:00"])
}

func TestAvailableSlots_IgnoresCancelledAndOtherDays(t *testing.T) {
	rules := DefaultSlotRules()
	rules.Location = time.UTC
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	cancelled := tableWithReservation(time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC), models.ReservationStatusCancelled)
	slots, err := AvailableSlots(cancelled, "2025-03-02", now, rules)
	require.NoError(t, err)
	assert.Len(t, slots, 30)

	otherDay := tableWithReservation(time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC), models.ReservationStatusConfirmed)
	slots, err = AvailableSlots(otherDay, "2025-03-02", now, rules)
	require.NoError(t, err)
	assert.Len(t, slots, 30)
}

func TestAvailableSlots_TodayAppliesLead(t *testing.T) {
	rules := DefaultSlotRules()
	rules.Location = time.UTC
	now := time.Date(2025, 3, 2, 15, 10, 0, 0, time.UTC)

	slots, err := AvailableSlots(models.Table{ID: 1}, "2025-03-02", now, rules)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	// 15:30 is only 20 minutes past 15:10, inside the 30 minute lead.
	assert.Equal(t, "16:00", slots[0].Label)
}

func TestAvailableSlots_InvalidDate(t *testing.T) {
	_, err := AvailableSlots(models.Table{}, "02/03/2025", time.Now(), DefaultSlotRules())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSlotRules_Validate(t *testing.T) {
	assert.NoError(t, DefaultSlotRules().Validate())

	overlapping := DefaultSlotRules()
	overlapping.Periods[1].StartHour = 10
	assert.ErrorIs(t, overlapping.Validate(), ErrValidation)

	inverted := DefaultSlotRules()
	inverted.ClosingHour = 6
	assert.ErrorIs(t, inverted.Validate(), ErrValidation)
}
