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

package pipeline

import (
	"context"
	"fmt"
	"time"

	"careflow/platform/monitor"
	"careflow/platform/shared/logger"
	"careflow/platform/shared/types"
)

// Follow-up alert kinds.
const (
	AlertMissedAppointments = "missed_appointments"
	AlertNoContact          = "no_contact"
)

// Outreach decisions.
const (
	OutreachConcern = "concern"
	OutreachRoutine = "routine"
)

// adherenceThreshold is the attendance rate below which the care team
// is alerted.
const adherenceThreshold = 0.8

// noContactDays is how long a patient can go without contact before an
// alert is raised.
const noContactDays = 14

// AdherenceReport summarizes appointment attendance up to a point in
// time.
type AdherenceReport struct {
	PastAppointments int     `json:"past_appointments"`
	Attended         int     `json:"attended"`
	Missed           int     `json:"missed"`
	AdherenceRate    float64 `json:"adherence_rate"`
}

// ComputeAdherence counts attendance across appointments already in
// the past. With no past appointments the rate is a clean 1.0.
func ComputeAdherence(appointments []types.Appointment, now time.Time) AdherenceReport {
	report := AdherenceReport{AdherenceRate: 1.0}
	for _, apt := range appointments {
		if !apt.Scheduled.Before(now) {
			continue
		}
		report.PastAppointments++
		if apt.Attended {
			report.Attended++
		} else {
			report.Missed++
		}
	}
	if report.PastAppointments > 0 {
		report.AdherenceRate = float64(report.Attended) / float64(report.PastAppointments)
	}
	return report
}

// FollowUpResult is produced once per monitoring check.
type FollowUpResult struct {
	FollowUpID       string          `json:"followup_id"`
	PatientID        string          `json:"patient_id"`
	Adherence        AdherenceReport `json:"adherence"`
	DaysSinceContact int             `json:"days_since_contact"`
	Alerts           []Alert         `json:"alerts"`
	OutreachType     string          `json:"outreach_type,omitempty"`
	CheckInMessage   string          `json:"check_in_message,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}

// FollowUpManager runs longitudinal monitoring over the registry.
type FollowUpManager struct {
	registry   *monitor.Registry
	dispatcher Dispatcher
	log        *logger.Logger
	now        func() time.Time
}

// NewFollowUpManager wires a manager to its registry and alert sink.
func NewFollowUpManager(registry *monitor.Registry, dispatcher Dispatcher) *FollowUpManager {
	return &FollowUpManager{
		registry:   registry,
		dispatcher: dispatcher,
		log:        logger.New("followup"),
		now:        time.Now,
	}
}

// SetClock overrides the manager clock. Test hook.
func (m *FollowUpManager) SetClock(clock func() time.Time) {
	m.now = clock
}

// InitializeMonitoring enrolls a patient after a completed workflow and
// sends the initial check-in message.
func (m *FollowUpManager) InitializeMonitoring(ctx context.Context, patientID, treatmentRef, diagnosis string, appointments []types.Appointment) (FollowUpResult, error) {
	now := m.now()
	mon := m.registry.Add(patientID, treatmentRef, diagnosis, appointments)

	result := FollowUpResult{
		FollowUpID:     fmt.Sprintf("FU-%s-%s", patientID, now.Format(idTimestampFormat)),
		PatientID:      patientID,
		Adherence:      AdherenceReport{AdherenceRate: 1.0},
		CheckInMessage: initialCheckInMessage(mon.CheckIntervalDays),
		Timestamp:      now,
	}

	m.log.Info(patientID, "", "Monitoring initialized", map[string]interface{}{
		"treatment_reference": treatmentRef,
		"next_check":          mon.NextCheck.Format(time.RFC3339),
		"appointments":        len(appointments),
	})
	return result, nil
}

// RunCheck evaluates one enrolled patient: adherence, contact recency,
// alerting, and outreach. The check is recorded against the registry.
func (m *FollowUpManager) RunCheck(ctx context.Context, patientID string) (FollowUpResult, error) {
	now := m.now()
	mon, ok := m.registry.Get(patientID)
	if !ok {
		return FollowUpResult{}, fmt.Errorf("patient %s is not enrolled in monitoring", patientID)
	}

	adherence := ComputeAdherence(mon.Appointments, now)
	daysSinceContact := int(now.Sub(mon.LastContact).Hours() / 24)

	result := FollowUpResult{
		FollowUpID:       fmt.Sprintf("FU-%s-%s", patientID, now.Format(idTimestampFormat)),
		PatientID:        patientID,
		Adherence:        adherence,
		DaysSinceContact: daysSinceContact,
		Timestamp:        now,
	}

	if adherence.PastAppointments > 0 && adherence.AdherenceRate < adherenceThreshold {
		severity := types.SeverityWarning
		if adherence.Missed >= 2 {
			severity = types.SeverityUrgent
		}
		result.Alerts = append(result.Alerts, Alert{
			PatientID: patientID,
			AlertType: "followup",
			Kind:      AlertMissedAppointments,
			Severity:  severity,
			Message:   fmt.Sprintf("Patient has missed %d appointment(s)", adherence.Missed),
			Timestamp: now,
		})
	}

	if daysSinceContact > noContactDays {
		result.Alerts = append(result.Alerts, Alert{
			PatientID: patientID,
			AlertType: "followup",
			Kind:      AlertNoContact,
			Severity:  types.SeverityWarning,
			Message:   fmt.Sprintf("No patient contact in %d days", daysSinceContact),
			Timestamp: now,
		})
	}

	outreachSent := false
	switch {
	case len(result.Alerts) > 0:
		result.OutreachType = OutreachConcern
		result.CheckInMessage = concernCheckInMessage(result.Alerts)
		outreachSent = true
	case daysSinceContact >= mon.CheckIntervalDays:
		result.OutreachType = OutreachRoutine
		result.CheckInMessage = routineCheckInMessage()
		outreachSent = true
	}

	for i := range result.Alerts {
		confirmation, err := m.dispatcher.Send(ctx, result.Alerts[i])
		if err != nil {
			m.log.ErrorWithErr(patientID, "", "Alert dispatch failed", err, nil)
			continue
		}
		result.Alerts[i].AlertID = confirmation.AlertID
		m.registry.AppendAlert(patientID, confirmation.AlertID)
	}

	m.registry.RecordCheck(patientID, monitor.CheckOutcome{
		AdherenceRate:    adherence.AdherenceRate,
		DaysSinceContact: daysSinceContact,
		AlertCount:       len(result.Alerts),
		OutreachSent:     outreachSent,
	})

	return result, nil
}

// RunMonitoringCycle checks every patient whose next check is due.
func (m *FollowUpManager) RunMonitoringCycle(ctx context.Context) ([]FollowUpResult, error) {
	due := m.registry.DueForCheck(m.now())
	results := make([]FollowUpResult, 0, len(due))
	for _, patientID := range due {
		result, err := m.RunCheck(ctx, patientID)
		if err != nil {
			m.log.ErrorWithErr(patientID, "", "Monitoring check failed", err, nil)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

func initialCheckInMessage(intervalDays int) string {
	return fmt.Sprintf(
		"Hello! Your care team has set up follow-up monitoring for your recent visit. "+
			"We will check in with you every %d days. "+
			"Please attend your scheduled appointments and reach out with any concerns.",
		intervalDays)
}

func routineCheckInMessage() string {
	return "Hello! This is a routine check-in from your care team. " +
		"How are you feeling? Please reply with any updates on your symptoms " +
		"or questions about your treatment plan."
}

func concernCheckInMessage(alerts []Alert) string {
	for _, alert := range alerts {
		if alert.Kind == AlertMissedAppointments {
			return "Hello, we noticed you have missed a recent appointment. " +
				"Staying on schedule is important for your recovery. " +
				"Please contact us to reschedule at your earliest convenience."
		}
	}
	return "Hello, we have not heard from you in a while and want to make sure " +
		"you are doing well. Please reply to let us know how you are feeling, " +
		"or call your care team if you need anything."
}
