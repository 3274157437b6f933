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
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// WorkflowAuditLogger records per-stage audit entries for every care
// workflow. Entries are queued and written in batches so the pipeline
// never blocks on the database. When no database is available the
// logger degrades to a no-op.
type WorkflowAuditLogger struct {
	db           *sql.DB
	batchWriter  *auditBatchWriter
	auditQueue   chan *WorkflowAuditEntry
	wg           sync.WaitGroup
	shutdownChan chan struct{}
}

// WorkflowAuditEntry is a single audit record.
type WorkflowAuditEntry struct {
	ID           string    `json:"id"`
	WorkflowID   string    `json:"workflow_id"`
	PatientID    string    `json:"patient_id"`
	Stage        string    `json:"stage"`
	AgentName    string    `json:"agent_name,omitempty"`
	Status       string    `json:"status"`
	UrgencyLevel int       `json:"urgency_level,omitempty"`
	Model        string    `json:"model,omitempty"`
	TokensUsed   int       `json:"tokens_used,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewWorkflowAuditLogger connects to the audit database and starts the
// background writer. Falls back to a no-op logger when the database is
// unavailable.
func NewWorkflowAuditLogger(databaseURL string) *WorkflowAuditLogger {
	if databaseURL == "" {
		return &WorkflowAuditLogger{
			auditQueue:   make(chan *WorkflowAuditEntry, 10000),
			shutdownChan: make(chan struct{}),
		}
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Printf("Failed to connect to audit database: %v", err)
		return &WorkflowAuditLogger{
			auditQueue:   make(chan *WorkflowAuditEntry, 10000),
			shutdownChan: make(chan struct{}),
		}
	}

	if err := createWorkflowAuditTable(db); err != nil {
		log.Printf("Failed to create audit table: %v", err)
	}

	return newWorkflowAuditLoggerWithDB(db)
}

// NewWorkflowAuditLoggerWithDB wraps an existing connection. Used in
// tests.
func NewWorkflowAuditLoggerWithDB(db *sql.DB) *WorkflowAuditLogger {
	return newWorkflowAuditLoggerWithDB(db)
}

func newWorkflowAuditLoggerWithDB(db *sql.DB) *WorkflowAuditLogger {
	logger := &WorkflowAuditLogger{
		db:           db,
		batchWriter:  newAuditBatchWriter(db, 100),
		auditQueue:   make(chan *WorkflowAuditEntry, 10000),
		shutdownChan: make(chan struct{}),
	}

	logger.wg.Add(1)
	go logger.processAuditQueue()

	return logger
}

func createWorkflowAuditTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_audit_logs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			agent_name TEXT,
			status TEXT NOT NULL,
			urgency_level INT,
			model TEXT,
			tokens_used INT,
			duration_ms BIGINT,
			error_message TEXT,
			timestamp TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// LogStage records one completed pipeline stage.
func (l *WorkflowAuditLogger) LogStage(workflowID, patientID, stage, agentName, status string, durationMS int64) *WorkflowAuditEntry {
	entry := &WorkflowAuditEntry{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		PatientID:  patientID,
		Stage:      stage,
		AgentName:  agentName,
		Status:     status,
		DurationMS: durationMS,
		Timestamp:  time.Now().UTC(),
	}
	l.enqueueEntry(entry)
	return entry
}

// LogWorkflow records the terminal status of a workflow run.
func (l *WorkflowAuditLogger) LogWorkflow(workflowID, patientID, status string, urgencyLevel int, durationMS int64, errMessage string) *WorkflowAuditEntry {
	entry := &WorkflowAuditEntry{
		ID:           uuid.NewString(),
		WorkflowID:   workflowID,
		PatientID:    patientID,
		Stage:        "workflow",
		Status:       status,
		UrgencyLevel: urgencyLevel,
		DurationMS:   durationMS,
		ErrorMessage: errMessage,
		Timestamp:    time.Now().UTC(),
	}
	l.enqueueEntry(entry)
	return entry
}

// RecentEntries returns the most recent audit entries for a patient.
func (l *WorkflowAuditLogger) RecentEntries(ctx context.Context, patientID string, limit int) ([]*WorkflowAuditEntry, error) {
	if l.db == nil {
		return []*WorkflowAuditEntry{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, workflow_id, patient_id, stage, agent_name, status,
			   urgency_level, model, tokens_used, duration_ms,
			   error_message, timestamp
		FROM workflow_audit_logs
		WHERE patient_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*WorkflowAuditEntry
	for rows.Next() {
		entry := &WorkflowAuditEntry{}
		var agentName, model, errMessage sql.NullString
		var urgency, tokens sql.NullInt64

		err := rows.Scan(
			&entry.ID,
			&entry.WorkflowID,
			&entry.PatientID,
			&entry.Stage,
			&agentName,
			&entry.Status,
			&urgency,
			&model,
			&tokens,
			&entry.DurationMS,
			&errMessage,
			&entry.Timestamp,
		)
		if err != nil {
			log.Printf("Error scanning audit log: %v", err)
			continue
		}

		entry.AgentName = agentName.String
		entry.Model = model.String
		entry.ErrorMessage = errMessage.String
		entry.UrgencyLevel = int(urgency.Int64)
		entry.TokensUsed = int(tokens.Int64)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// IsHealthy checks if the audit logger is healthy.
func (l *WorkflowAuditLogger) IsHealthy() bool {
	if l.db == nil {
		return true // No-op logger is always healthy
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	return l.db.PingContext(ctx) == nil
}

// Shutdown flushes pending entries and stops the background writer.
func (l *WorkflowAuditLogger) Shutdown() {
	close(l.shutdownChan)
	if l.batchWriter != nil {
		l.wg.Wait()
		l.batchWriter.Stop()
	}
}

// enqueueEntry adds an entry to the processing queue. Without a
// database there is no drainer, so entries are discarded rather than
// accumulated for the process lifetime.
func (l *WorkflowAuditLogger) enqueueEntry(entry *WorkflowAuditEntry) {
	if l.db == nil {
		return
	}
	select {
	case l.auditQueue <- entry:
	default:
		// Queue is full, write directly (blocking)
		log.Printf("Audit queue full, writing directly")
		if l.batchWriter != nil {
			_ = l.batchWriter.Write([]*WorkflowAuditEntry{entry})
		}
	}
}

// processAuditQueue drains queued entries into the batch writer.
func (l *WorkflowAuditLogger) processAuditQueue() {
	defer l.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case entry := <-l.auditQueue:
			if l.batchWriter != nil {
				l.batchWriter.Add(entry)
			}
		case <-ticker.C:
			if l.batchWriter != nil {
				l.batchWriter.Flush()
			}
		case <-l.shutdownChan:
			for {
				select {
				case entry := <-l.auditQueue:
					if l.batchWriter != nil {
						l.batchWriter.Add(entry)
					}
				default:
					if l.batchWriter != nil {
						l.batchWriter.Flush()
					}
					return
				}
			}
		}
	}
}

// auditBatchWriter accumulates entries and writes them in one
// transaction.
type auditBatchWriter struct {
	db          *sql.DB
	batchSize   int
	flushTicker *time.Ticker
	entries     []*WorkflowAuditEntry
	mu          sync.Mutex
	done        chan struct{}
}

func newAuditBatchWriter(db *sql.DB, batchSize int) *auditBatchWriter {
	writer := &auditBatchWriter{
		db:          db,
		batchSize:   batchSize,
		entries:     make([]*WorkflowAuditEntry, 0, batchSize),
		flushTicker: time.NewTicker(10 * time.Second),
		done:        make(chan struct{}),
	}

	go writer.periodicFlush()

	return writer
}

func (b *auditBatchWriter) periodicFlush() {
	for {
		select {
		case <-b.flushTicker.C:
			b.Flush()
		case <-b.done:
			return
		}
	}
}

func (b *auditBatchWriter) Stop() {
	b.flushTicker.Stop()
	close(b.done)
	b.Flush()
}

func (b *auditBatchWriter) Add(entry *WorkflowAuditEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, entry)

	if len(b.entries) >= b.batchSize {
		b.flush()
	}
}

func (b *auditBatchWriter) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flush()
}

func (b *auditBatchWriter) flush() {
	if len(b.entries) == 0 {
		return
	}

	if err := b.Write(b.entries); err != nil {
		log.Printf("Failed to write audit batch: %v", err)
	}

	b.entries = b.entries[:0]
}

func (b *auditBatchWriter) Write(entries []*WorkflowAuditEntry) error {
	if b.db == nil {
		return nil
	}

	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO workflow_audit_logs (
			id, workflow_id, patient_id, stage, agent_name, status,
			urgency_level, model, tokens_used, duration_ms,
			error_message, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, entry := range entries {
		_, err := stmt.Exec(
			entry.ID,
			entry.WorkflowID,
			entry.PatientID,
			entry.Stage,
			entry.AgentName,
			entry.Status,
			entry.UrgencyLevel,
			entry.Model,
			entry.TokensUsed,
			entry.DurationMS,
			entry.ErrorMessage,
			entry.Timestamp,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
