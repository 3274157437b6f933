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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocInputs(t *testing.T) (TriageResult, DiagnosisResult, TreatmentResult) {
	t.Helper()
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	triage := NewTriageResult("P001", "persistent cough", "stable presentation", 3, nil, now)
	picture := ClinicalPicture{
		PatientID:          "P001",
		ChiefComplaint:     "persistent cough",
		MedicalHistory:     []string{"Hypertension"},
		CurrentMedications: []string{"Lisinopril 10mg"},
		Allergies:          []string{"Penicillin"},
	}
	diagnosis := NewDiagnosisResult("P001", triage.TriageID, picture, "likely viral bronchitis", "",
		ReferralAssessment{
			ReferralNeeded: true,
			Recommendations: []SpecialistRecommendation{
				{Specialty: "pulmonology", Reason: "r", Urgency: "routine"},
			},
		}, now)
	treatment := NewTreatmentResult("P001", diagnosis.DiagnosisID, "supportive care and rest",
		[]string{"Dextromethorphan"}, SafetyCheckResult{Passed: true}, "", now)
	return triage, diagnosis, treatment
}

func TestAggregateSOAPDataBuckets(t *testing.T) {
	triage, diagnosis, treatment := sampleDocInputs(t)

	data := AggregateSOAPData(&triage, &diagnosis, &treatment)

	assert.Equal(t, "P001", data.PatientID)
	assert.Contains(t, data.Subjective, "Chief complaint: persistent cough")
	assert.Contains(t, data.Subjective, "Medical history: Hypertension")
	assert.Contains(t, data.Objective, "Triage urgency: level 3 (URGENT - Serious but stable)")
	assert.Contains(t, data.Assessment, "likely viral bronchitis")
	assert.Contains(t, data.Plan, "supportive care and rest")
	assert.Contains(t, data.Plan, "Referral to pulmonology (routine)")
	assert.Equal(t, []string{"Penicillin"}, data.Allergies)
}

func TestAggregateSOAPDataToleratesMissingStages(t *testing.T) {
	triage, _, _ := sampleDocInputs(t)

	data := AggregateSOAPData(&triage, nil, nil)

	assert.Equal(t, "P001", data.PatientID)
	assert.Empty(t, data.Plan)
	assert.Empty(t, data.Allergies)
}

func TestGenerateSOAPNoteLayout(t *testing.T) {
	triage, diagnosis, treatment := sampleDocInputs(t)
	data := AggregateSOAPData(&triage, &diagnosis, &treatment)

	note := GenerateSOAPNote(data, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))

	assert.Contains(t, note, "CLINICAL NOTE - SOAP FORMAT")
	assert.Contains(t, note, "Patient ID: P001")
	assert.Contains(t, note, "Date: 2025-01-15 10:00")
	for _, section := range []string{"SUBJECTIVE", "OBJECTIVE", "ASSESSMENT", "PLAN"} {
		assert.Contains(t, note, section+"\n"+strings.Repeat("-", 40))
	}
	assert.Contains(t, note, "Allergies: Penicillin")
	assert.Contains(t, note, "Status: DRAFT - Requires Physician Review and Attestation")
	assert.Contains(t, note, "Generated by: Clinical Care AI System")
}

func TestGenerateSOAPNoteNKDAWhenNoAllergies(t *testing.T) {
	note := GenerateSOAPNote(SOAPData{PatientID: "P002"}, time.Now())

	assert.Contains(t, note, "Allergies: NKDA (No Known Drug Allergies)")
	assert.Contains(t, note, "None documented.")
}

func TestNewDocumentationResult(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 30, 45, 0, time.UTC)
	result := NewDocumentationResult("P001", "note body", now)

	require.Equal(t, "DOC-P001-20250115103045", result.DocumentID)
	assert.Equal(t, "draft", result.Status)
	assert.Equal(t, "note body", result.SOAPNote)
}
