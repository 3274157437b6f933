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
	"sync"

	"careflow/platform/shared/types"
)

// PatientDirectory is the in-memory patient records source. It stands in
// for an EMR integration and ships with a small fixed roster.
type PatientDirectory struct {
	mu       sync.RWMutex
	patients map[string]types.PatientRecord
}

// NewPatientDirectory creates a directory seeded with the demo roster.
func NewPatientDirectory() *PatientDirectory {
	return &PatientDirectory{
		patients: map[string]types.PatientRecord{
			"P001": {
				PatientID:          "P001",
				Name:               "John Smith",
				Age:                45,
				Gender:             "M",
				MedicalHistory:     []string{"Hypertension", "Type 2 Diabetes"},
				CurrentMedications: []string{"Metformin 500mg", "Lisinopril 10mg"},
				Allergies:          []string{"Penicillin"},
				LastVisit:          "2024-10-15",
			},
			"P002": {
				PatientID:          "P002",
				Name:               "Sarah Johnson",
				Age:                32,
				Gender:             "F",
				MedicalHistory:     []string{"Asthma"},
				CurrentMedications: []string{"Albuterol inhaler PRN"},
				Allergies:          []string{},
				LastVisit:          "2024-11-01",
			},
		},
	}
}

// Lookup returns the record for a patient ID. Unknown IDs are reported
// through the bool, never an error.
func (d *PatientDirectory) Lookup(patientID string) (types.PatientRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	record, ok := d.patients[patientID]
	return record, ok
}

// Register adds or replaces a patient record.
func (d *PatientDirectory) Register(record types.PatientRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patients[record.PatientID] = record
}

// Count returns the number of known patients.
func (d *PatientDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.patients)
}
