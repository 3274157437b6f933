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
)

// SOAPData buckets workflow findings into the four sections of a SOAP
// note.
type SOAPData struct {
	PatientID  string
	Subjective []string
	Objective  []string
	Assessment []string
	Plan       []string
	Allergies  []string
}

// AggregateSOAPData folds the stage handoffs into SOAP buckets. Any of
// the stage results may be nil when the workflow exited early.
func AggregateSOAPData(triage *TriageResult, diagnosis *DiagnosisResult, treatment *TreatmentResult) SOAPData {
	var data SOAPData

	if triage != nil {
		data.PatientID = triage.PatientID
		data.Subjective = append(data.Subjective,
			fmt.Sprintf("Chief complaint: %s", triage.ChiefComplaint))
		data.Objective = append(data.Objective,
			fmt.Sprintf("Triage urgency: level %d (%s)", triage.UrgencyLevel, triage.UrgencyDescription))
		if len(triage.RedFlags) > 0 {
			data.Objective = append(data.Objective,
				fmt.Sprintf("Red flags identified: %s", strings.Join(triage.RedFlags, ", ")))
		}
		if triage.Assessment != "" {
			data.Assessment = append(data.Assessment, triage.Assessment)
		}
	}

	if diagnosis != nil {
		if data.PatientID == "" {
			data.PatientID = diagnosis.PatientID
		}
		picture := diagnosis.ClinicalPicture
		if len(picture.MedicalHistory) > 0 {
			data.Subjective = append(data.Subjective,
				fmt.Sprintf("Medical history: %s", strings.Join(picture.MedicalHistory, ", ")))
		}
		if len(picture.CurrentMedications) > 0 {
			data.Subjective = append(data.Subjective,
				fmt.Sprintf("Current medications: %s", strings.Join(picture.CurrentMedications, ", ")))
		}
		data.Allergies = picture.Allergies
		if diagnosis.Analysis != "" {
			data.Assessment = append(data.Assessment, diagnosis.Analysis)
		}
		for _, rec := range diagnosis.SpecialistReferral.Recommendations {
			data.Plan = append(data.Plan,
				fmt.Sprintf("Referral to %s (%s)", rec.Specialty, rec.Urgency))
		}
	}

	if treatment != nil {
		if data.PatientID == "" {
			data.PatientID = treatment.PatientID
		}
		if treatment.Plan != "" {
			data.Plan = append(data.Plan, treatment.Plan)
		}
		if len(treatment.ProposedMedications) > 0 {
			data.Plan = append(data.Plan,
				fmt.Sprintf("Proposed medications: %s", strings.Join(treatment.ProposedMedications, ", ")))
		}
		for _, warning := range treatment.SafetyChecks.Warnings {
			data.Plan = append(data.Plan, fmt.Sprintf("Safety note: %s", warning.Message))
		}
	}

	return data
}

// GenerateSOAPNote renders the aggregated data as a physician-readable
// draft note.
func GenerateSOAPNote(data SOAPData, now time.Time) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	sep := strings.Repeat("-", 40)

	b.WriteString(rule + "\n")
	b.WriteString("CLINICAL NOTE - SOAP FORMAT\n")
	b.WriteString(rule + "\n")
	b.WriteString(fmt.Sprintf("Patient ID: %s\n", data.PatientID))
	b.WriteString(fmt.Sprintf("Date: %s\n", now.Format("2006-01-02 15:04")))
	b.WriteString("\n")

	writeSection(&b, "SUBJECTIVE", sep, data.Subjective)
	writeSection(&b, "OBJECTIVE", sep, data.Objective)
	writeSection(&b, "ASSESSMENT", sep, data.Assessment)
	writeSection(&b, "PLAN", sep, data.Plan)

	if len(data.Allergies) > 0 {
		b.WriteString(fmt.Sprintf("Allergies: %s\n", strings.Join(data.Allergies, ", ")))
	} else {
		b.WriteString("Allergies: NKDA (No Known Drug Allergies)\n")
	}
	b.WriteString("\n")
	b.WriteString(rule + "\n")
	b.WriteString("Status: DRAFT - Requires Physician Review and Attestation\n")
	b.WriteString("Generated by: Clinical Care AI System\n")
	b.WriteString(rule + "\n")
	return b.String()
}

func writeSection(b *strings.Builder, title, sep string, lines []string) {
	b.WriteString(title + "\n")
	b.WriteString(sep + "\n")
	if len(lines) == 0 {
		b.WriteString("None documented.\n")
	}
	for _, line := range lines {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\n")
}

// DocumentationResult is the handoff from the documentation stage.
type DocumentationResult struct {
	DocumentID    string    `json:"document_id"`
	PatientID     string    `json:"patient_id"`
	SOAPNote      string    `json:"soap_note"`
	Transcription string    `json:"transcription,omitempty"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewDocumentationResult wraps a generated note with its identifiers.
func NewDocumentationResult(patientID, note string, now time.Time) DocumentationResult {
	return DocumentationResult{
		DocumentID: fmt.Sprintf("DOC-%s-%s", patientID, now.Format(idTimestampFormat)),
		PatientID:  patientID,
		SOAPNote:   note,
		Status:     "draft",
		Timestamp:  now,
	}
}
