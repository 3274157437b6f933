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
	"time"
)

// WarningType classifies safety warnings from the interaction checker.
type WarningType string

const (
	WarningInteraction WarningType = "interaction"
	WarningAllergy     WarningType = "allergy"
)

// Warning severities. Policy: interactions warn, allergies block.
const (
	SeverityModerate = "moderate"
	SeverityHigh     = "high"
)

// InteractionWarning is one safety warning. Drugs is set for
// interaction warnings; Drug and Allergen for allergy conflicts.
type InteractionWarning struct {
	Type     WarningType `json:"type"`
	Drugs    []string    `json:"drugs,omitempty"`
	Drug     string      `json:"drug,omitempty"`
	Allergen string      `json:"allergen,omitempty"`
	Warning  string      `json:"warning,omitempty"`
	Severity string      `json:"severity"`
}

// InteractionReport is the outcome of a drug-interaction and allergy
// check. SafeToPrescribe is false iff at least one high-severity warning
// exists: interaction-table hits are always moderate and never block.
type InteractionReport struct {
	SafeToPrescribe    bool                 `json:"safe_to_prescribe"`
	Warnings           []InteractionWarning `json:"warnings"`
	MedicationsChecked []string             `json:"medications_checked"`
	Timestamp          time.Time            `json:"timestamp"`
}

// drugPair is one entry in the fixed interaction table.
type drugPair struct {
	A, B    string
	Warning string
}

var knownInteractions = []drugPair{
	{"warfarin", "aspirin", "Increased bleeding risk"},
	{"metformin", "contrast dye", "Risk of lactic acidosis"},
	{"lisinopril", "potassium", "Risk of hyperkalemia"},
}

// CheckDrugInteractions reports pairwise interaction warnings for drug
// pairs in the fixed table and per-medication allergy conflicts.
//
// The interaction scan matches each table drug as a substring of the
// space-joined lowercase medication list, so a pair triggers regardless
// of which list each drug appears in. Overlapping drug names can
// therefore cross-match; intentional fidelity to the upstream table
// semantics.
func CheckDrugInteractions(proposed, current, allergies []string) InteractionReport {
	report := InteractionReport{
		MedicationsChecked: proposed,
		Timestamp:          time.Now().UTC(),
	}

	allMeds := make([]string, 0, len(proposed)+len(current))
	for _, m := range proposed {
		allMeds = append(allMeds, strings.ToLower(m))
	}
	for _, m := range current {
		allMeds = append(allMeds, strings.ToLower(m))
	}
	joined := strings.Join(allMeds, " ")

	for _, pair := range knownInteractions {
		if strings.Contains(joined, pair.A) && strings.Contains(joined, pair.B) {
			report.Warnings = append(report.Warnings, InteractionWarning{
				Type:     WarningInteraction,
				Drugs:    []string{pair.A, pair.B},
				Warning:  pair.Warning,
				Severity: SeverityModerate,
			})
		}
	}

	for _, med := range proposed {
		medLower := strings.ToLower(med)
		for _, allergy := range allergies {
			if allergy == "" {
				continue
			}
			if strings.Contains(medLower, strings.ToLower(allergy)) {
				report.Warnings = append(report.Warnings, InteractionWarning{
					Type:     WarningAllergy,
					Drug:     med,
					Allergen: allergy,
					Severity: SeverityHigh,
				})
			}
		}
	}

	report.SafeToPrescribe = true
	for _, w := range report.Warnings {
		if w.Severity == SeverityHigh {
			report.SafeToPrescribe = false
			break
		}
	}
	return report
}
