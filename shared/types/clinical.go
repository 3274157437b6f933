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

package types

import "time"

// PatientRecord holds the demographic and clinical summary of a patient
// as returned by the records directory.
type PatientRecord struct {
	PatientID          string   `json:"patient_id"`
	Name               string   `json:"name"`
	Age                int      `json:"age"`
	Gender             string   `json:"gender"`
	MedicalHistory     []string `json:"medical_history"`
	CurrentMedications []string `json:"current_medications"`
	Allergies          []string `json:"allergies"`
	LastVisit          string   `json:"last_visit"`
}

// PatientIntake is the free-text intake submitted when a care workflow
// is started. Symptoms drive triage; the remaining fields provide context
// for the downstream stages.
type PatientIntake struct {
	PatientID      string   `json:"patient_id"`
	Symptoms       string   `json:"symptoms"`
	Age            int      `json:"age,omitempty"`
	Gender         string   `json:"gender,omitempty"`
	MedicalHistory []string `json:"medical_history,omitempty"`
	Medications    []string `json:"medications,omitempty"`
	// ProposedMedications are medications under consideration for this
	// encounter. They feed the treatment safety gate.
	ProposedMedications []string `json:"proposed_medications,omitempty"`
	Allergies           []string `json:"allergies,omitempty"`
	Pregnant            bool     `json:"pregnant,omitempty"`
}

// Appointment is a confirmed clinic appointment.
type Appointment struct {
	ConfirmationNumber string    `json:"confirmation_number"`
	PatientID          string    `json:"patient_id"`
	Type               string    `json:"type"`
	Scheduled          time.Time `json:"datetime"`
	Location           string    `json:"location"`
	Provider           string    `json:"provider"`
	Instructions       string    `json:"instructions"`
	// Attended is meaningful only once Scheduled is in the past.
	Attended bool `json:"attended"`
}

// AlertSeverity classifies dispatched alerts.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityUrgent   AlertSeverity = "urgent"
	SeverityCritical AlertSeverity = "critical"
)

// AppointmentType values understood by the scheduler.
const (
	AppointmentFollowUp   = "follow_up"
	AppointmentSpecialist = "specialist"
	AppointmentLab        = "lab"
	AppointmentImaging    = "imaging"
)
