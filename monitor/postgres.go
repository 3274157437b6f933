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

package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"careflow/platform/shared/types"
)

// Store persists monitor snapshots. Implementations must tolerate
// repeated saves of the same patient (upsert semantics).
type Store interface {
	SaveMonitor(ctx context.Context, m *Monitor) error
	LoadMonitors(ctx context.Context) ([]*Monitor, error)
}

// PostgresStore persists monitors in a single table with JSON columns for
// the list-valued fields. It backs warm restarts of the registry.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and ensures the monitors table
// exists.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open monitor database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.createTable(); err != nil {
		return nil, fmt.Errorf("failed to create monitors table: %w", err)
	}
	return store, nil
}

// NewPostgresStoreWithDB wraps an existing connection. Used by tests.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the underlying connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) createTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS followup_monitors (
			patient_id          TEXT PRIMARY KEY,
			created_at          TIMESTAMPTZ NOT NULL,
			status              TEXT NOT NULL,
			treatment_reference TEXT,
			diagnosis           TEXT,
			appointments        JSONB NOT NULL DEFAULT '[]',
			check_interval_days INTEGER NOT NULL,
			next_check          TIMESTAMPTZ NOT NULL,
			check_history       JSONB NOT NULL DEFAULT '[]',
			last_contact        TIMESTAMPTZ NOT NULL,
			alerts_generated    JSONB NOT NULL DEFAULT '[]'
		)`)
	return err
}

// SaveMonitor upserts the monitor snapshot.
func (s *PostgresStore) SaveMonitor(ctx context.Context, m *Monitor) error {
	appointments, err := json.Marshal(m.Appointments)
	if err != nil {
		return fmt.Errorf("failed to marshal appointments: %w", err)
	}
	history, err := json.Marshal(m.CheckHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal check history: %w", err)
	}
	alerts, err := json.Marshal(m.AlertsGenerated)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO followup_monitors (
			patient_id, created_at, status, treatment_reference, diagnosis,
			appointments, check_interval_days, next_check, check_history,
			last_contact, alerts_generated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (patient_id) DO UPDATE SET
			status              = EXCLUDED.status,
			treatment_reference = EXCLUDED.treatment_reference,
			diagnosis           = EXCLUDED.diagnosis,
			appointments        = EXCLUDED.appointments,
			check_interval_days = EXCLUDED.check_interval_days,
			next_check          = EXCLUDED.next_check,
			check_history       = EXCLUDED.check_history,
			last_contact        = EXCLUDED.last_contact,
			alerts_generated    = EXCLUDED.alerts_generated`,
		m.PatientID, m.CreatedAt, m.Status, m.TreatmentRef, m.Diagnosis,
		appointments, m.CheckIntervalDays, m.NextCheck, history,
		m.LastContact, alerts,
	)
	return err
}

// LoadMonitors returns all persisted monitors.
func (s *PostgresStore) LoadMonitors(ctx context.Context) ([]*Monitor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_id, created_at, status, treatment_reference, diagnosis,
		       appointments, check_interval_days, next_check, check_history,
		       last_contact, alerts_generated
		FROM followup_monitors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var monitors []*Monitor
	for rows.Next() {
		var (
			m            Monitor
			createdAt    time.Time
			nextCheck    time.Time
			lastContact  time.Time
			appointments []byte
			history      []byte
			alerts       []byte
		)
		if err := rows.Scan(
			&m.PatientID, &createdAt, &m.Status, &m.TreatmentRef, &m.Diagnosis,
			&appointments, &m.CheckIntervalDays, &nextCheck, &history,
			&lastContact, &alerts,
		); err != nil {
			return nil, err
		}
		m.CreatedAt = createdAt
		m.NextCheck = nextCheck
		m.LastContact = lastContact

		if err := json.Unmarshal(appointments, &m.Appointments); err != nil {
			m.Appointments = []types.Appointment{}
		}
		if err := json.Unmarshal(history, &m.CheckHistory); err != nil {
			m.CheckHistory = nil
		}
		if err := json.Unmarshal(alerts, &m.AlertsGenerated); err != nil {
			m.AlertsGenerated = nil
		}
		monitors = append(monitors, &m)
	}
	return monitors, rows.Err()
}
