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

// Urgency tiers, 1 (most severe) to 5 (least severe).
const (
	UrgencyImmediate  = 1
	UrgencyEmergency  = 2
	UrgencyUrgent     = 3
	UrgencyLessUrgent = 4
	UrgencyNonUrgent  = 5
)

// redFlagPhrases are symptom phrases that force the highest urgency
// tier on a case-insensitive substring match. Coarse by intent: no
// negation handling, no synonym expansion.
var redFlagPhrases = []string{
	"chest pain", "chest pressure", "difficulty breathing",
	"shortness of breath", "severe bleeding", "unconscious",
	"loss of consciousness", "confusion", "stroke",
	"face drooping", "arm weakness", "speech difficulty",
	"severe allergic", "anaphylaxis", "suicidal", "self-harm",
	"severe trauma", "not breathing", "no pulse",
}

// urgencyCategory groups keywords that map to one urgency tier.
// Categories are evaluated in slice order; the first category with any
// keyword present wins.
type urgencyCategory struct {
	Label    string
	Tier     int
	Keywords []string
}

var urgencyCategories = []urgencyCategory{
	{
		Label: "high",
		Tier:  UrgencyImmediate,
		Keywords: []string{
			"chest pain", "difficulty breathing", "severe", "unconscious", "bleeding heavily",
		},
	},
	{
		Label: "medium",
		Tier:  UrgencyUrgent,
		Keywords: []string{
			"fever", "pain", "vomiting", "dizziness", "weakness",
		},
	},
	{
		Label: "low",
		Tier:  UrgencyNonUrgent,
		Keywords: []string{
			"mild", "minor", "slight", "occasional",
		},
	},
}

// urgencyDescriptions maps tiers to the triage nurse shorthand used in
// handoffs and notes.
var urgencyDescriptions = map[int]string{
	UrgencyImmediate:  "IMMEDIATE - Life threatening",
	UrgencyEmergency:  "EMERGENCY - Severe condition",
	UrgencyUrgent:     "URGENT - Serious but stable",
	UrgencyLessUrgent: "LESS URGENT - Can wait",
	UrgencyNonUrgent:  "NON-URGENT - Routine care",
}

// RedFlagResult reports the outcome of the fast-path danger phrase scan.
type RedFlagResult struct {
	HasRedFlags        bool     `json:"has_red_flags"`
	Found              []string `json:"red_flags_found"`
	RecommendedUrgency int      `json:"recommended_urgency,omitempty"`
}

// CheckRedFlags scans a symptom description for danger phrases. Any hit
// recommends the highest urgency tier.
func CheckRedFlags(symptoms string) RedFlagResult {
	lower := strings.ToLower(symptoms)

	var found []string
	for _, phrase := range redFlagPhrases {
		if strings.Contains(lower, phrase) {
			found = append(found, phrase)
		}
	}

	result := RedFlagResult{
		HasRedFlags: len(found) > 0,
		Found:       found,
	}
	if result.HasRedFlags {
		result.RecommendedUrgency = UrgencyImmediate
	}
	return result
}

// ClassifyUrgency assigns an urgency tier from the keyword categories.
// Absence of any match defaults to the middle tier.
func ClassifyUrgency(symptoms string) (int, string) {
	lower := strings.ToLower(symptoms)

	for _, cat := range urgencyCategories {
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				return cat.Tier, cat.Label
			}
		}
	}
	return UrgencyUrgent, "medium"
}

// UrgencyDescription returns the handoff description for a tier.
func UrgencyDescription(tier int) string {
	if desc, ok := urgencyDescriptions[tier]; ok {
		return desc
	}
	return "Unknown"
}

// TriageResult is the structured handoff from the triage stage to the
// diagnosis stage.
type TriageResult struct {
	TriageID           string    `json:"triage_id"`
	PatientID          string    `json:"patient_id"`
	ChiefComplaint     string    `json:"chief_complaint"`
	UrgencyLevel       int       `json:"urgency_level"`
	UrgencyDescription string    `json:"urgency_description"`
	Assessment         string    `json:"assessment"`
	RedFlags           []string  `json:"red_flags"`
	NotesForDiagnosis  string    `json:"notes_for_diagnosis,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// NewTriageResult assembles a triage handoff record.
func NewTriageResult(patientID, symptoms, assessment string, urgency int, redFlags []string, now time.Time) TriageResult {
	return TriageResult{
		TriageID:           fmt.Sprintf("TRG-%s-%s", patientID, now.Format(idTimestampFormat)),
		PatientID:          patientID,
		ChiefComplaint:     symptoms,
		UrgencyLevel:       urgency,
		UrgencyDescription: UrgencyDescription(urgency),
		Assessment:         assessment,
		RedFlags:           redFlags,
		Timestamp:          now,
	}
}

// idTimestampFormat is the compact timestamp used in generated record IDs
// (TRG-, DX-, TX-, APT-, and so on).
const idTimestampFormat = "20060102150405"
