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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownPairFlaggedAcrossLists(t *testing.T) {
	report := CheckDrugInteractions(
		[]string{"Aspirin 81mg"},
		[]string{"Warfarin 5mg"},
		nil,
	)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, WarningInteraction, report.Warnings[0].Type)
	assert.Equal(t, "Increased bleeding risk", report.Warnings[0].Warning)
	assert.Equal(t, SeverityModerate, report.Warnings[0].Severity)
	assert.True(t, report.SafeToPrescribe)
}

func TestKnownPairFlaggedWithinProposedList(t *testing.T) {
	// The scan joins proposed and current meds, so a pair entirely
	// within the proposed list is still caught.
	report := CheckDrugInteractions(
		[]string{"Lisinopril 10mg", "Potassium chloride"},
		nil,
		nil,
	)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "Risk of hyperkalemia", report.Warnings[0].Warning)
}

func TestAllergyConflictBlocksPrescribing(t *testing.T) {
	report := CheckDrugInteractions(
		[]string{"Penicillin VK 500mg"},
		nil,
		[]string{"Penicillin"},
	)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, WarningAllergy, report.Warnings[0].Type)
	assert.Equal(t, SeverityHigh, report.Warnings[0].Severity)
	assert.Equal(t, "Penicillin VK 500mg", report.Warnings[0].Drug)
	assert.Equal(t, "Penicillin", report.Warnings[0].Allergen)
	assert.False(t, report.SafeToPrescribe)
}

func TestModerateWarningsAloneStaySafe(t *testing.T) {
	report := CheckDrugInteractions(
		[]string{"Metformin 500mg"},
		[]string{"Contrast dye"},
		[]string{"Sulfa"},
	)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "Risk of lactic acidosis", report.Warnings[0].Warning)
	assert.True(t, report.SafeToPrescribe)
}

func TestNoWarningsForUnrelatedMedications(t *testing.T) {
	report := CheckDrugInteractions(
		[]string{"Ibuprofen 200mg"},
		[]string{"Albuterol inhaler PRN"},
		nil,
	)

	assert.Empty(t, report.Warnings)
	assert.True(t, report.SafeToPrescribe)
}

func TestMedicationsCheckedEchoesProposedList(t *testing.T) {
	proposed := []string{"Aspirin", "Metformin"}
	report := CheckDrugInteractions(proposed, nil, nil)

	assert.Equal(t, proposed, report.MedicationsChecked)
}
