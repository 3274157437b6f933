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
	"context"
	"sort"
	"sync"
	"time"

	"careflow/platform/shared/logger"
	"careflow/platform/shared/types"
)

// Monitor lifecycle status. Only "active" monitors are swept for checks;
// no other transition is defined.
const StatusActive = "active"

// Default check cadence for a newly added patient.
const DefaultCheckIntervalDays = 7

// History bound: once the check history exceeds historyMax entries it is
// trimmed to the historyKeep most recent ones.
const (
	historyMax  = 20
	historyKeep = 10
)

// Monitor is the per-patient follow-up tracking record.
type Monitor struct {
	PatientID         string              `json:"patient_id"`
	CreatedAt         time.Time           `json:"created_at"`
	Status            string              `json:"status"`
	TreatmentRef      string              `json:"treatment_reference"`
	Diagnosis         string              `json:"diagnosis"`
	Appointments      []types.Appointment `json:"scheduled_appointments"`
	CheckIntervalDays int                 `json:"check_interval_days"`
	NextCheck         time.Time           `json:"next_check"`
	CheckHistory      []CheckRecord       `json:"check_history"`
	LastContact       time.Time           `json:"last_contact"`
	AlertsGenerated   []string            `json:"alerts_generated"`
}

// CheckRecord is one recorded monitoring check.
type CheckRecord struct {
	Timestamp time.Time    `json:"timestamp"`
	Outcome   CheckOutcome `json:"outcome"`
}

// CheckOutcome summarizes what a monitoring check found.
type CheckOutcome struct {
	AdherenceRate    float64 `json:"adherence_rate"`
	DaysSinceContact int     `json:"days_since_contact"`
	AlertCount       int     `json:"alert_count"`
	OutreachSent     bool    `json:"outreach_sent"`
}

// Update holds partial Monitor fields for Registry.Update. Nil pointers
// leave the corresponding field unchanged.
type Update struct {
	Status            *string
	CheckIntervalDays *int
	NextCheck         *time.Time
	Appointments      []types.Appointment
}

// RegistryStats provides a snapshot of the registry.
type RegistryStats struct {
	MonitorCount int       `json:"monitor_count"`
	ActiveCount  int       `json:"active_count"`
	ChecksTotal  int       `json:"checks_total"`
	LastChange   time.Time `json:"last_change"`
}

// Registry manages follow-up monitors with thread-safe access.
// There is exactly one Monitor per patient; re-adding replaces it.
type Registry struct {
	mu       sync.RWMutex
	monitors map[string]*Monitor
	store    Store
	log      *logger.Logger

	lastChange  time.Time
	checksTotal int

	// now is injectable for tests.
	now func() time.Time
}

// NewRegistry creates an empty monitoring registry.
func NewRegistry() *Registry {
	return &Registry{
		monitors: make(map[string]*Monitor),
		log:      logger.New("monitor"),
		now:      time.Now,
	}
}

// SetClock overrides the registry clock. Intended for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// AttachStore enables write-through persistence. Store failures are
// logged and do not fail registry operations.
func (r *Registry) AttachStore(store Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = store
}

// LoadFromStore replaces the in-memory state with the store contents.
// Used for warm starts after a restart.
func (r *Registry) LoadFromStore(ctx context.Context) error {
	r.mu.Lock()
	store := r.store
	r.mu.Unlock()
	if store == nil {
		return nil
	}

	monitors, err := store.LoadMonitors(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitors = make(map[string]*Monitor, len(monitors))
	for _, m := range monitors {
		r.monitors[m.PatientID] = m
	}
	r.lastChange = r.now()
	return nil
}

// Add creates a monitor for the patient, replacing any existing one.
// The first check comes due after the default interval.
func (r *Registry) Add(patientID, treatmentRef, diagnosis string, appointments []types.Appointment) Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	m := &Monitor{
		PatientID:         patientID,
		CreatedAt:         now,
		Status:            StatusActive,
		TreatmentRef:      treatmentRef,
		Diagnosis:         diagnosis,
		Appointments:      appointments,
		CheckIntervalDays: DefaultCheckIntervalDays,
		NextCheck:         now.AddDate(0, 0, DefaultCheckIntervalDays),
		CheckHistory:      nil,
		LastContact:       now,
		AlertsGenerated:   nil,
	}

	r.monitors[patientID] = m
	r.lastChange = now
	r.persist(m)
	return *m
}

// Get returns a copy of the patient's monitor.
func (r *Registry) Get(patientID string) (Monitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monitors[patientID]
	if !ok {
		return Monitor{}, false
	}
	return cloneMonitor(m), true
}

// Update merges partial fields into the patient's monitor. Unknown
// patients are a no-op reporting ok=false.
func (r *Registry) Update(patientID string, upd Update) (Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[patientID]
	if !ok {
		return Monitor{}, false
	}

	if upd.Status != nil {
		m.Status = *upd.Status
	}
	if upd.CheckIntervalDays != nil {
		m.CheckIntervalDays = *upd.CheckIntervalDays
	}
	if upd.NextCheck != nil {
		m.NextCheck = *upd.NextCheck
	}
	if upd.Appointments != nil {
		m.Appointments = upd.Appointments
	}

	r.lastChange = r.now()
	r.persist(m)
	return cloneMonitor(m), true
}

// DueForCheck returns the patients whose monitors are active with a next
// check at or before now, in stable (sorted) order.
func (r *Registry) DueForCheck(now time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []string
	for patientID, m := range r.monitors {
		if m.Status != StatusActive {
			continue
		}
		if !m.NextCheck.After(now) {
			due = append(due, patientID)
		}
	}
	sort.Strings(due)
	return due
}

// RecordCheck appends a check outcome to the patient's history, trims the
// history to its bound, refreshes last contact, and schedules the next
// check one interval out. Unknown patients are a no-op.
func (r *Registry) RecordCheck(patientID string, outcome CheckOutcome) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[patientID]
	if !ok {
		return false
	}

	now := r.now()
	m.CheckHistory = append(m.CheckHistory, CheckRecord{Timestamp: now, Outcome: outcome})
	if len(m.CheckHistory) > historyMax {
		m.CheckHistory = append([]CheckRecord(nil), m.CheckHistory[len(m.CheckHistory)-historyKeep:]...)
	}

	m.LastContact = now
	m.NextCheck = now.AddDate(0, 0, m.CheckIntervalDays)

	r.checksTotal++
	r.lastChange = now
	r.persist(m)
	return true
}

// AppendAlert records an alert ID against the patient's monitor.
func (r *Registry) AppendAlert(patientID, alertID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[patientID]
	if !ok {
		return false
	}
	m.AlertsGenerated = append(m.AlertsGenerated, alertID)
	r.persist(m)
	return true
}

// Stats returns a snapshot of the registry.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := 0
	for _, m := range r.monitors {
		if m.Status == StatusActive {
			active++
		}
	}
	return RegistryStats{
		MonitorCount: len(r.monitors),
		ActiveCount:  active,
		ChecksTotal:  r.checksTotal,
		LastChange:   r.lastChange,
	}
}

// persist writes the monitor through to the attached store, if any.
// Callers must hold r.mu.
func (r *Registry) persist(m *Monitor) {
	if r.store == nil {
		return
	}
	snapshot := cloneMonitor(m)
	if err := r.store.SaveMonitor(context.Background(), &snapshot); err != nil {
		r.log.Warn(m.PatientID, "", "Failed to persist monitor", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func cloneMonitor(m *Monitor) Monitor {
	out := *m
	out.Appointments = append([]types.Appointment(nil), m.Appointments...)
	out.CheckHistory = append([]CheckRecord(nil), m.CheckHistory...)
	out.AlertsGenerated = append([]string(nil), m.AlertsGenerated...)
	return out
}
