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
	"fmt"
	"strings"
	"time"

	"careflow/platform/shared/types"
)

// Scheduling statuses. Partial means at least one requested booking
// failed while others succeeded.
const (
	SchedulingCompleted = "completed"
	SchedulingPartial   = "partial"
)

// Booking lead times in days, keyed by appointment urgency.
var bookingLeadDays = map[string]int{
	"emergency": 0,
	"urgent":    1,
	"routine":   7,
}

// Lead times for requirements parsed from a care plan.
var requirementLeadDays = map[string]int{
	"urgent":  1,
	"soon":    7,
	"routine": 14,
}

const defaultLeadDays = 7
const defaultRequirementLeadDays = 14

// appointmentHour is the daily slot offered by the mock scheduler.
const appointmentHour = 10

// appointmentInstructions keyed by appointment type.
var appointmentInstructions = map[string]string{
	types.AppointmentFollowUp:   "Please bring your current medication list and any questions.",
	types.AppointmentSpecialist: "Bring referral paperwork and relevant medical records.",
	types.AppointmentLab:        "Fast for 8-12 hours before your appointment. Water is OK.",
	types.AppointmentImaging:    "Wear comfortable clothing without metal. Arrive 15 minutes early.",
}

const defaultInstructions = "Please arrive 15 minutes early."

// PrepInstructions are detailed patient preparation notes per
// appointment type.
type PrepInstructions struct {
	Before string `json:"before,omitempty"`
	Bring  string `json:"bring,omitempty"`
	Wear   string `json:"wear,omitempty"`
	Other  string `json:"other,omitempty"`
}

var prepByType = map[string]PrepInstructions{
	types.AppointmentFollowUp: {
		Bring: "Current medication list, symptom diary, insurance card",
		Other: "Write down questions for your provider ahead of time",
	},
	types.AppointmentSpecialist: {
		Bring: "Referral paperwork, prior test results, medical records",
		Other: "Arrive early to complete new-patient forms",
	},
	types.AppointmentLab: {
		Before: "Fast for 8-12 hours. Water is OK",
		Bring:  "Lab order and photo ID",
		Wear:   "Short sleeves or sleeves that roll up easily",
	},
	types.AppointmentImaging: {
		Before: "Remove jewelry and metal accessories",
		Bring:  "Imaging order and prior imaging if available",
		Wear:   "Comfortable clothing without metal fasteners",
		Other:  "Arrive 15 minutes early for screening questions",
	},
}

// PrepInstructionsFor returns detailed preparation notes for an
// appointment type.
func PrepInstructionsFor(appointmentType string) PrepInstructions {
	if prep, ok := prepByType[appointmentType]; ok {
		return prep
	}
	return PrepInstructions{Other: defaultInstructions}
}

// AppointmentRequirement is one appointment that a care plan calls for.
type AppointmentRequirement struct {
	Type      string `json:"type"`
	Specialty string `json:"specialty,omitempty"`
	Urgency   string `json:"urgency"`
	Reason    string `json:"reason,omitempty"`
}

// BookAppointment books the next available slot for the given type and
// urgency. The mock scheduler always succeeds and offers a fixed
// mid-morning slot.
func BookAppointment(patientID, appointmentType, urgency string, now time.Time) types.Appointment {
	lead, ok := bookingLeadDays[urgency]
	if !ok {
		lead = defaultLeadDays
	}
	day := now.AddDate(0, 0, lead)
	slot := time.Date(day.Year(), day.Month(), day.Day(), appointmentHour, 0, 0, 0, day.Location())

	instructions, ok := appointmentInstructions[appointmentType]
	if !ok {
		instructions = defaultInstructions
	}

	return types.Appointment{
		ConfirmationNumber: fmt.Sprintf("APT-%s-%s", patientID, now.Format(idTimestampFormat)),
		PatientID:          patientID,
		Type:               appointmentType,
		Scheduled:          slot,
		Location:           "Main Clinic - Room 101",
		Provider:           "Dr. Available",
		Instructions:       instructions,
	}
}

// ParseSchedulingRequirements derives the appointments a care episode
// needs: a follow-up visit always, a specialist visit per diagnosis
// referral, and lab work when the monitoring plan calls for labs.
func ParseSchedulingRequirements(diagnosis *DiagnosisResult, followUpPlan string, monitoringParams []string) []AppointmentRequirement {
	requirements := []AppointmentRequirement{{
		Type:    types.AppointmentFollowUp,
		Urgency: requirementUrgency(followUpPlan),
		Reason:  "Post-treatment follow-up",
	}}

	if diagnosis != nil && diagnosis.SpecialistReferral.ReferralNeeded {
		for _, rec := range diagnosis.SpecialistReferral.Recommendations {
			requirements = append(requirements, AppointmentRequirement{
				Type:      types.AppointmentSpecialist,
				Specialty: rec.Specialty,
				Urgency:   rec.Urgency,
				Reason:    rec.Reason,
			})
		}
	}

	for _, param := range monitoringParams {
		if strings.Contains(strings.ToLower(param), "lab") {
			requirements = append(requirements, AppointmentRequirement{
				Type:    types.AppointmentLab,
				Urgency: "routine",
				Reason:  "Monitoring labs per care plan",
			})
			break
		}
	}

	return requirements
}

func requirementUrgency(plan string) string {
	lower := strings.ToLower(plan)
	switch {
	case strings.Contains(lower, "urgent"):
		return "urgent"
	case strings.Contains(lower, "soon"):
		return "soon"
	default:
		return "routine"
	}
}

// SchedulingResult is the handoff from the scheduling stage.
type SchedulingResult struct {
	SchedulingID string              `json:"scheduling_id"`
	PatientID    string              `json:"patient_id"`
	Appointments []types.Appointment `json:"appointments"`
	Failures     []string            `json:"failures,omitempty"`
	Status       string              `json:"status"`
	Timestamp    time.Time           `json:"timestamp"`
}

// ScheduleAll books every required appointment. Lead times come from
// the requirement urgency; unknown urgencies fall back to two weeks
// out.
func ScheduleAll(patientID string, requirements []AppointmentRequirement, now time.Time) SchedulingResult {
	result := SchedulingResult{
		SchedulingID: fmt.Sprintf("SCH-%s-%s", patientID, now.Format(idTimestampFormat)),
		PatientID:    patientID,
		Status:       SchedulingCompleted,
		Timestamp:    now,
	}

	for _, req := range requirements {
		lead, ok := requirementLeadDays[req.Urgency]
		if !ok {
			lead = defaultRequirementLeadDays
		}
		day := now.AddDate(0, 0, lead)
		slot := time.Date(day.Year(), day.Month(), day.Day(), appointmentHour, 0, 0, 0, day.Location())

		instructions, ok := appointmentInstructions[req.Type]
		if !ok {
			instructions = defaultInstructions
		}

		result.Appointments = append(result.Appointments, types.Appointment{
			ConfirmationNumber: fmt.Sprintf("APT-%s-%s", patientID, now.Format(idTimestampFormat)),
			PatientID:          patientID,
			Type:               req.Type,
			Scheduled:          slot,
			Location:           "Main Clinic - Room 101",
			Provider:           "Dr. Available",
			Instructions:       instructions,
		})
	}

	if len(result.Failures) > 0 {
		result.Status = SchedulingPartial
	}
	return result
}
