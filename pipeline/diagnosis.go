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

// Demographics is the age/gender slice of the clinical picture.
type Demographics struct {
	Age    int    `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// ClinicalPicture aggregates triage findings with patient history for
// the diagnosis stage.
type ClinicalPicture struct {
	PatientID          string        `json:"patient_id"`
	ChiefComplaint     string        `json:"chief_complaint"`
	UrgencyLevel       int           `json:"urgency_level"`
	TriageAssessment   string        `json:"triage_assessment"`
	RedFlags           []string      `json:"red_flags"`
	Demographics       *Demographics `json:"demographics,omitempty"`
	MedicalHistory     []string      `json:"medical_history,omitempty"`
	CurrentMedications []string      `json:"current_medications,omitempty"`
	Allergies          []string      `json:"allergies,omitempty"`
}

// BuildClinicalPicture combines the triage handoff with the patient
// record. record may be nil when the patient is not in the directory.
func BuildClinicalPicture(triage TriageResult, record *types.PatientRecord) ClinicalPicture {
	picture := ClinicalPicture{
		PatientID:        triage.PatientID,
		ChiefComplaint:   triage.ChiefComplaint,
		UrgencyLevel:     triage.UrgencyLevel,
		TriageAssessment: triage.Assessment,
		RedFlags:         triage.RedFlags,
	}

	if record != nil {
		picture.Demographics = &Demographics{Age: record.Age, Gender: record.Gender}
		picture.MedicalHistory = record.MedicalHistory
		picture.CurrentMedications = record.CurrentMedications
		picture.Allergies = record.Allergies
	}
	return picture
}

// specialtyKeywords routes clinical text to specialties. Evaluated in
// slice order so referral lists are deterministic.
type specialtyKeywords struct {
	Specialty string
	Keywords  []string
}

var specialistRouting = []specialtyKeywords{
	{"cardiology", []string{"cardiac", "heart", "chest pain", "arrhythmia", "ecg", "palpitations"}},
	{"neurology", []string{"neurological", "seizure", "stroke", "headache", "numbness", "weakness"}},
	{"orthopedics", []string{"fracture", "bone", "joint", "musculoskeletal", "back pain"}},
	{"gastroenterology", []string{"gi", "abdominal", "liver", "digestive", "nausea", "vomiting"}},
	{"pulmonology", []string{"respiratory", "lung", "breathing", "pulmonary", "cough", "asthma"}},
	{"psychiatry", []string{"mental health", "depression", "anxiety", "psychiatric", "suicidal"}},
}

// referralUrgencyMarkers escalate a referral from routine to urgent.
var referralUrgencyMarkers = []string{"emergency", "severe", "acute"}

// SpecialistRecommendation is one suggested referral.
type SpecialistRecommendation struct {
	Specialty string `json:"specialty"`
	Reason    string `json:"reason"`
	Urgency   string `json:"urgency"`
}

// ReferralAssessment reports whether specialist input is indicated.
type ReferralAssessment struct {
	ReferralNeeded  bool                       `json:"referral_needed"`
	Recommendations []SpecialistRecommendation `json:"recommendations"`
}

// AssessSpecialistNeed scans the clinical picture and the differential
// text for specialty keywords. Referrals are urgent when any escalation
// marker appears anywhere in the combined text, else routine.
func AssessSpecialistNeed(picture ClinicalPicture, differential string) ReferralAssessment {
	var parts []string
	parts = append(parts, picture.ChiefComplaint, picture.TriageAssessment)
	parts = append(parts, picture.RedFlags...)
	parts = append(parts, picture.MedicalHistory...)
	parts = append(parts, picture.CurrentMedications...)
	parts = append(parts, differential)
	combined := strings.ToLower(strings.Join(parts, " "))

	urgency := "routine"
	for _, marker := range referralUrgencyMarkers {
		if strings.Contains(combined, marker) {
			urgency = "urgent"
			break
		}
	}

	var recs []SpecialistRecommendation
	for _, route := range specialistRouting {
		for _, kw := range route.Keywords {
			if strings.Contains(combined, kw) {
				recs = append(recs, SpecialistRecommendation{
					Specialty: route.Specialty,
					Reason:    fmt.Sprintf("Clinical indicators suggest %s involvement", route.Specialty),
					Urgency:   urgency,
				})
				break
			}
		}
	}

	return ReferralAssessment{
		ReferralNeeded:  len(recs) > 0,
		Recommendations: recs,
	}
}

// DiagnosisResult is the handoff from the diagnosis stage to treatment
// planning.
type DiagnosisResult struct {
	DiagnosisID        string             `json:"diagnosis_id"`
	PatientID          string             `json:"patient_id"`
	TriageReference    string             `json:"triage_reference"`
	ClinicalPicture    ClinicalPicture    `json:"clinical_picture"`
	Analysis           string             `json:"agent_analysis"`
	ModelAssessment    string             `json:"model_assessment,omitempty"`
	SpecialistReferral ReferralAssessment `json:"specialist_referral"`
	Timestamp          time.Time          `json:"timestamp"`
	Disclaimer         string             `json:"disclaimer"`
}

// NewDiagnosisResult assembles a diagnosis handoff record.
func NewDiagnosisResult(patientID, triageRef string, picture ClinicalPicture, analysis, modelAssessment string, referral ReferralAssessment, now time.Time) DiagnosisResult {
	return DiagnosisResult{
		DiagnosisID:        fmt.Sprintf("DX-%s-%s", patientID, now.Format(idTimestampFormat)),
		PatientID:          patientID,
		TriageReference:    triageRef,
		ClinicalPicture:    picture,
		Analysis:           analysis,
		ModelAssessment:    modelAssessment,
		SpecialistReferral: referral,
		Timestamp:          now,
		Disclaimer:         "AI-assisted analysis - requires physician review",
	}
}
