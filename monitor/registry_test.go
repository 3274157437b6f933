// Copyright 2025 CareFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careflow/platform/shared/types"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAddCreatesActiveMonitor(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	r := NewRegistry()
	r.SetClock(fixedClock(now))

	m := r.Add("P001", "TX-P001-1", "Hypertension", nil)

	assert.Equal(t, StatusActive, m.Status)
	assert.Equal(t, DefaultCheckIntervalDays, m.CheckIntervalDays)
	assert.Equal(t, now.AddDate(0, 0, 7), m.NextCheck)
	assert.Equal(t, now, m.LastContact)
}

func TestAddReplacesExistingMonitor(t *testing.T) {
	r := NewRegistry()
	r.Add("P001", "TX-1", "Asthma", nil)
	r.RecordCheck("P001", CheckOutcome{})

	m := r.Add("P001", "TX-2", "Bronchitis", nil)

	// Replace, not merge: the previous history is gone.
	assert.Empty(t, m.CheckHistory)
	assert.Equal(t, "TX-2", m.TreatmentRef)
	assert.Equal(t, 1, r.Stats().MonitorCount)
}

func TestGetUnknownPatient(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("P999")
	assert.False(t, ok)
}

func TestUpdateMergesFields(t *testing.T) {
	r := NewRegistry()
	r.Add("P001", "TX-1", "Asthma", nil)

	interval := 14
	m, ok := r.Update("P001", Update{CheckIntervalDays: &interval})
	require.True(t, ok)
	assert.Equal(t, 14, m.CheckIntervalDays)
	assert.Equal(t, StatusActive, m.Status)
}

func TestUpdateUnknownPatientIsNoOp(t *testing.T) {
	r := NewRegistry()
	status := "paused"
	_, ok := r.Update("P999", Update{Status: &status})
	assert.False(t, ok)
}

func TestDueForCheck(t *testing.T) {
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	r := NewRegistry()
	r.SetClock(fixedClock(base))

	r.Add("P001", "TX-1", "", nil)
	r.Add("P002", "TX-2", "", nil)

	// Not yet due.
	assert.Empty(t, r.DueForCheck(base.AddDate(0, 0, 6)))

	// Both due at exactly next_check.
	due := r.DueForCheck(base.AddDate(0, 0, 7))
	assert.Equal(t, []string{"P001", "P002"}, due)

	// Non-active monitors are excluded.
	paused := "paused"
	r.Update("P002", Update{Status: &paused})
	due = r.DueForCheck(base.AddDate(0, 0, 8))
	assert.Equal(t, []string{"P001"}, due)
}

func TestRecordCheckAdvancesSchedule(t *testing.T) {
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	r := NewRegistry()
	r.SetClock(fixedClock(base))
	r.Add("P001", "TX-1", "", nil)

	checkTime := base.AddDate(0, 0, 8)
	r.SetClock(fixedClock(checkTime))

	ok := r.RecordCheck("P001", CheckOutcome{AdherenceRate: 1.0})
	require.True(t, ok)

	m, _ := r.Get("P001")
	assert.Equal(t, checkTime, m.LastContact)
	assert.Equal(t, checkTime.AddDate(0, 0, m.CheckIntervalDays), m.NextCheck)

	// Immediately after a check the patient is no longer due.
	assert.Empty(t, r.DueForCheck(checkTime))
}

func TestRecordCheckUnknownPatient(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.RecordCheck("P999", CheckOutcome{}))
}

func TestHistoryBound(t *testing.T) {
	r := NewRegistry()
	r.Add("P001", "TX-1", "", nil)

	// The history never exceeds 20 entries immediately after a check.
	for i := 0; i < 20; i++ {
		r.RecordCheck("P001", CheckOutcome{AlertCount: i})
		m, _ := r.Get("P001")
		assert.LessOrEqual(t, len(m.CheckHistory), 20)
	}

	m, _ := r.Get("P001")
	require.Len(t, m.CheckHistory, 20)

	// The 21st check trips the trim down to the 10 most recent.
	r.RecordCheck("P001", CheckOutcome{AlertCount: 20})
	m, _ = r.Get("P001")
	require.Len(t, m.CheckHistory, 10)

	// Most recent retained, oldest dropped first.
	assert.Equal(t, 20, m.CheckHistory[9].Outcome.AlertCount)
	assert.Equal(t, 11, m.CheckHistory[0].Outcome.AlertCount)
}

func TestAppendAlert(t *testing.T) {
	r := NewRegistry()
	r.Add("P001", "TX-1", "", nil)

	assert.True(t, r.AppendAlert("P001", "ALT-1"))
	assert.False(t, r.AppendAlert("P999", "ALT-2"))

	m, _ := r.Get("P001")
	assert.Equal(t, []string{"ALT-1"}, m.AlertsGenerated)
}

func TestStats(t *testing.T) {
	r := NewRegistry()
	r.Add("P001", "TX-1", "", []types.Appointment{{Type: types.AppointmentFollowUp}})
	r.Add("P002", "TX-2", "", nil)
	r.RecordCheck("P001", CheckOutcome{})

	stats := r.Stats()
	assert.Equal(t, 2, stats.MonitorCount)
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Equal(t, 1, stats.ChecksTotal)
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Add("P001", "TX-1", "", []types.Appointment{{Type: types.AppointmentLab}})

	m, _ := r.Get("P001")
	m.Appointments[0].Type = "mutated"
	m.Status = "mutated"

	fresh, _ := r.Get("P001")
	assert.Equal(t, types.AppointmentLab, fresh.Appointments[0].Type)
	assert.Equal(t, StatusActive, fresh.Status)
}
