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

// Treatment plan statuses. A plan goes to safety_hold whenever any
// safety check produces a blocker.
const (
	TreatmentPendingApproval = "pending_approval"
	TreatmentSafetyHold      = "safety_hold"
)

// Safety notice types.
const (
	NoticeAllergyConflict = "allergy_conflict"
	NoticeInteraction     = "interaction"
	NoticePregnancy       = "pregnancy"
	NoticeElderly         = "elderly"
)

// elderlyAgeThreshold triggers the dose-adjustment warning.
const elderlyAgeThreshold = 65

// SafetyNotice is a single finding from the treatment safety gate.
// Blockers halt prescribing; warnings require clinician attention.
type SafetyNotice struct {
	Type       string   `json:"type"`
	Medication string   `json:"medication,omitempty"`
	Allergen   string   `json:"allergen,omitempty"`
	Drugs      []string `json:"drugs,omitempty"`
	Message    string   `json:"message"`
	Action     string   `json:"action,omitempty"`
}

// SafetyCheckResult is the outcome of the full safety gate.
type SafetyCheckResult struct {
	Passed          bool           `json:"passed"`
	ChecksPerformed []string       `json:"checks_performed"`
	Warnings        []SafetyNotice `json:"warnings"`
	Blockers        []SafetyNotice `json:"blockers"`
}

// RunSafetyChecks gates a set of proposed medications against the
// intake. Allergy conflicts always block. High-severity interactions
// block; moderate ones surface as warnings. Pregnancy and advanced age
// add population warnings but never block on their own.
func RunSafetyChecks(proposed []string, intake types.PatientIntake) SafetyCheckResult {
	result := SafetyCheckResult{
		Passed:          true,
		ChecksPerformed: []string{"allergy_check", "interaction_check", "population_check"},
	}

	for _, med := range proposed {
		for _, allergen := range intake.Allergies {
			if strings.Contains(strings.ToLower(med), strings.ToLower(allergen)) {
				result.Blockers = append(result.Blockers, SafetyNotice{
					Type:       NoticeAllergyConflict,
					Medication: med,
					Allergen:   allergen,
					Message:    fmt.Sprintf("%s conflicts with documented %s allergy", med, allergen),
					Action:     "DO NOT PRESCRIBE",
				})
				result.Passed = false
			}
		}
	}

	report := CheckDrugInteractions(proposed, intake.Medications, nil)
	for _, warning := range report.Warnings {
		if warning.Type != WarningInteraction {
			continue
		}
		notice := SafetyNotice{
			Type:    NoticeInteraction,
			Drugs:   warning.Drugs,
			Message: warning.Warning,
		}
		if warning.Severity == SeverityHigh {
			notice.Action = "DO NOT PRESCRIBE"
			result.Blockers = append(result.Blockers, notice)
			result.Passed = false
		} else {
			result.Warnings = append(result.Warnings, notice)
		}
	}

	if intake.Pregnant {
		result.Warnings = append(result.Warnings, SafetyNotice{
			Type:    NoticePregnancy,
			Message: "Verify all medications are pregnancy-safe",
		})
	}
	if intake.Age > elderlyAgeThreshold {
		result.Warnings = append(result.Warnings, SafetyNotice{
			Type:    NoticeElderly,
			Message: "Consider dose adjustments for elderly patient",
		})
	}

	return result
}

// TreatmentResult is the handoff from the treatment stage.
type TreatmentResult struct {
	TreatmentID         string            `json:"treatment_id"`
	PatientID           string            `json:"patient_id"`
	DiagnosisReference  string            `json:"diagnosis_reference"`
	Plan                string            `json:"treatment_plan"`
	ProposedMedications []string          `json:"proposed_medications"`
	SafetyChecks        SafetyCheckResult `json:"safety_checks"`
	PatientEducation    string            `json:"patient_education,omitempty"`
	Status              string            `json:"status"`
	Timestamp           time.Time         `json:"timestamp"`
	Disclaimer          string            `json:"disclaimer"`
}

// NewTreatmentResult assembles a treatment handoff record. Status is
// derived from the safety gate.
func NewTreatmentResult(patientID, diagnosisRef, plan string, proposed []string, safety SafetyCheckResult, education string, now time.Time) TreatmentResult {
	status := TreatmentPendingApproval
	if !safety.Passed {
		status = TreatmentSafetyHold
	}
	return TreatmentResult{
		TreatmentID:         fmt.Sprintf("TX-%s-%s", patientID, now.Format(idTimestampFormat)),
		PatientID:           patientID,
		DiagnosisReference:  diagnosisRef,
		Plan:                plan,
		ProposedMedications: proposed,
		SafetyChecks:        safety,
		PatientEducation:    education,
		Status:              status,
		Timestamp:           now,
		Disclaimer:          "Treatment plan requires physician approval before implementation",
	}
}

// GeneratePatientEducation renders plain-language guidance for the
// proposed plan. Used as the fallback when no language model is wired.
func GeneratePatientEducation(proposed []string, plan string) string {
	var b strings.Builder
	b.WriteString("Your care team has prepared a treatment plan for you.\n")
	if len(proposed) > 0 {
		b.WriteString("Medications under consideration: ")
		b.WriteString(strings.Join(proposed, ", "))
		b.WriteString(".\n")
	}
	if plan != "" {
		b.WriteString("Plan summary: ")
		b.WriteString(plan)
		b.WriteString("\n")
	}
	b.WriteString("Take medications exactly as directed and report any new or worsening symptoms.\n")
	b.WriteString("Contact your care team with questions before making changes to your regimen.")
	return b.String()
}
