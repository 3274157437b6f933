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
	"fmt"
	"strings"
	"sync"
	"time"

	"careflow/platform/llm"
	"careflow/platform/monitor"
	"careflow/platform/shared/logger"
	"careflow/platform/shared/types"
)

// Workflow statuses.
const (
	StatusRunning             = "running"
	StatusCompleted           = "completed"
	StatusEmergencyEscalation = "emergency_escalation"
	StatusSafetyReview        = "safety_review_required"
	StatusError               = "error"
)

// workflowHistoryMax bounds the in-memory history ring.
const workflowHistoryMax = 100

// defaultHistoryLimit is returned by WorkflowHistory when the caller
// passes a non-positive limit.
const defaultHistoryLimit = 10

// WorkflowSteps holds the per-stage results of one workflow run. A nil
// field means the stage did not run.
type WorkflowSteps struct {
	Triage        *TriageResult        `json:"triage,omitempty"`
	Diagnosis     *DiagnosisResult     `json:"diagnosis,omitempty"`
	Treatment     *TreatmentResult     `json:"treatment,omitempty"`
	Documentation *DocumentationResult `json:"documentation,omitempty"`
	Scheduling    *SchedulingResult    `json:"scheduling,omitempty"`
	FollowUp      *FollowUpResult      `json:"followup,omitempty"`
}

// WorkflowResult is the record of one care workflow run.
type WorkflowResult struct {
	WorkflowID      string        `json:"workflow_id"`
	PatientID       string        `json:"patient_id"`
	Status          string        `json:"status"`
	UrgencyLevel    int           `json:"urgency_level,omitempty"`
	Steps           WorkflowSteps `json:"steps"`
	Error           string        `json:"error,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     time.Time     `json:"completed_at"`
	DurationSeconds float64       `json:"duration_seconds"`
}

// OrchestratorStatus is returned by the status endpoint.
type OrchestratorStatus struct {
	Agents        []string               `json:"agents"`
	WorkflowsRun  int64                  `json:"workflows_run"`
	MonitorStats  monitor.RegistryStats  `json:"monitoring"`
	Metrics       *PipelineMetrics       `json:"metrics"`
	AgentRegistry CareAgentRegistryStats `json:"agent_registry"`
}

// CareOrchestrator coordinates the five-stage care pipeline. All
// collaborators are injected so tests can substitute fakes.
type CareOrchestrator struct {
	patients   *PatientDirectory
	agents     *CareAgentRegistry
	client     *llm.AgentClient
	medgen     *llm.MedGen
	registry   *monitor.Registry
	followup   *FollowUpManager
	dispatcher Dispatcher
	audit      *WorkflowAuditLogger
	metrics    *PipelineMetricsCollector
	log        *logger.Logger
	now        func() time.Time

	mu           sync.Mutex
	history      []WorkflowResult
	workflowsRun int64
}

// OrchestratorConfig bundles the orchestrator's collaborators.
type OrchestratorConfig struct {
	Patients   *PatientDirectory
	Agents     *CareAgentRegistry
	Client     *llm.AgentClient
	MedGen     *llm.MedGen
	Registry   *monitor.Registry
	FollowUp   *FollowUpManager
	Dispatcher Dispatcher
	Audit      *WorkflowAuditLogger
	Metrics    *PipelineMetricsCollector
}

// NewCareOrchestrator wires an orchestrator from its collaborators.
// Nil optional collaborators (audit, metrics) are replaced with
// no-ops.
func NewCareOrchestrator(cfg OrchestratorConfig) (*CareOrchestrator, error) {
	if cfg.Patients == nil {
		return nil, fmt.Errorf("patient directory is required")
	}
	if cfg.Agents == nil {
		return nil, fmt.Errorf("agent registry is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("agent client is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("monitor registry is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("alert dispatcher is required")
	}
	if cfg.MedGen == nil {
		cfg.MedGen = llm.NewMedGen(cfg.Client.Provider())
	}
	if cfg.FollowUp == nil {
		cfg.FollowUp = NewFollowUpManager(cfg.Registry, cfg.Dispatcher)
	}
	if cfg.Audit == nil {
		cfg.Audit = NewWorkflowAuditLogger("")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewPipelineMetricsCollector()
	}

	return &CareOrchestrator{
		patients:   cfg.Patients,
		agents:     cfg.Agents,
		client:     cfg.Client,
		medgen:     cfg.MedGen,
		registry:   cfg.Registry,
		followup:   cfg.FollowUp,
		dispatcher: cfg.Dispatcher,
		audit:      cfg.Audit,
		metrics:    cfg.Metrics,
		log:        logger.New("orchestrator"),
		now:        time.Now,
	}, nil
}

// SetClock overrides the orchestrator clock. Test hook.
func (o *CareOrchestrator) SetClock(clock func() time.Time) {
	o.now = clock
	o.followup.SetClock(clock)
}

// RunWorkflow executes the full care pipeline for one intake. The
// pipeline short-circuits on life-threatening triage findings and on
// treatment safety holds; both are successful outcomes, not errors.
func (o *CareOrchestrator) RunWorkflow(ctx context.Context, intake types.PatientIntake) (result WorkflowResult, err error) {
	start := o.now()
	result = WorkflowResult{
		WorkflowID: fmt.Sprintf("WF-%s-%s", intake.PatientID, start.Format(idTimestampFormat)),
		PatientID:  intake.PatientID,
		Status:     StatusRunning,
		StartedAt:  start,
	}

	defer func() {
		result.CompletedAt = o.now()
		result.DurationSeconds = result.CompletedAt.Sub(result.StartedAt).Seconds()
		if err != nil {
			result.Status = StatusError
			result.Error = err.Error()
		}
		o.recordWorkflow(result)
	}()

	if intake.PatientID == "" {
		return result, fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(intake.Symptoms) == "" {
		return result, fmt.Errorf("symptoms are required")
	}

	o.log.Info(intake.PatientID, result.WorkflowID, "Workflow started", map[string]interface{}{
		"symptoms_length": len(intake.Symptoms),
	})

	// Stage 1: triage.
	triage, err := o.runTriage(ctx, result.WorkflowID, intake)
	if err != nil {
		return result, fmt.Errorf("triage failed: %w", err)
	}
	result.Steps.Triage = &triage
	result.UrgencyLevel = triage.UrgencyLevel

	if triage.UrgencyLevel == UrgencyImmediate {
		o.escalateEmergency(ctx, result.WorkflowID, intake, triage)
		result.Status = StatusEmergencyEscalation
		return result, nil
	}

	// Stage 2: diagnosis.
	diagnosis, err := o.runDiagnosis(ctx, result.WorkflowID, intake, triage)
	if err != nil {
		return result, fmt.Errorf("diagnosis failed: %w", err)
	}
	result.Steps.Diagnosis = &diagnosis

	// Stage 3: treatment with safety gate.
	treatment, err := o.runTreatment(ctx, result.WorkflowID, intake, diagnosis)
	if err != nil {
		return result, fmt.Errorf("treatment planning failed: %w", err)
	}
	result.Steps.Treatment = &treatment

	if treatment.Status == TreatmentSafetyHold {
		o.log.Warn(intake.PatientID, result.WorkflowID, "Treatment plan on safety hold", map[string]interface{}{
			"blockers": len(treatment.SafetyChecks.Blockers),
		})
		result.Status = StatusSafetyReview
		return result, nil
	}

	// Stage 4: documentation and scheduling run concurrently.
	var (
		wg         sync.WaitGroup
		doc        DocumentationResult
		scheduling SchedulingResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		doc = o.runDocumentation(ctx, result.WorkflowID, triage, diagnosis, treatment)
	}()
	go func() {
		defer wg.Done()
		scheduling = o.runScheduling(result.WorkflowID, intake.PatientID, diagnosis, treatment)
	}()
	wg.Wait()

	result.Steps.Documentation = &doc
	result.Steps.Scheduling = &scheduling

	// Stage 5: enroll in follow-up monitoring.
	followUp, err := o.followup.InitializeMonitoring(ctx, intake.PatientID, treatment.TreatmentID, diagnosis.Analysis, scheduling.Appointments)
	if err != nil {
		return result, fmt.Errorf("follow-up setup failed: %w", err)
	}
	result.Steps.FollowUp = &followUp

	result.Status = StatusCompleted
	o.log.InfoWithDuration(intake.PatientID, result.WorkflowID, "Workflow completed",
		float64(o.now().Sub(start).Milliseconds()), map[string]interface{}{
			"urgency_level": triage.UrgencyLevel,
			"appointments":  len(scheduling.Appointments),
		})
	return result, nil
}

func (o *CareOrchestrator) runTriage(ctx context.Context, workflowID string, intake types.PatientIntake) (TriageResult, error) {
	stageStart := o.now()

	redFlags := CheckRedFlags(intake.Symptoms)
	urgency, _ := ClassifyUrgency(intake.Symptoms)
	if redFlags.HasRedFlags {
		urgency = redFlags.RecommendedUrgency
	}

	assessment, agentName := o.agentText(ctx, "triage", workflowID,
		fmt.Sprintf("Patient reports: %s\nAssign an urgency assessment.", intake.Symptoms))
	if assessment == "" {
		assessment = fmt.Sprintf("Symptom-based urgency tier %d (%s)", urgency, UrgencyDescription(urgency))
	}

	triage := NewTriageResult(intake.PatientID, intake.Symptoms, assessment, urgency, redFlags.Found, o.now())

	o.metrics.RecordStage("triage", o.now().Sub(stageStart), nil)
	o.audit.LogStage(workflowID, intake.PatientID, "triage", agentName, "completed", o.now().Sub(stageStart).Milliseconds())
	return triage, nil
}

func (o *CareOrchestrator) escalateEmergency(ctx context.Context, workflowID string, intake types.PatientIntake, triage TriageResult) {
	alert := Alert{
		PatientID: intake.PatientID,
		AlertType: "triage",
		Kind:      "emergency_escalation",
		Severity:  types.SeverityCritical,
		Message: fmt.Sprintf("Life-threatening presentation: %s. Red flags: %s",
			triage.ChiefComplaint, strings.Join(triage.RedFlags, ", ")),
		Timestamp: o.now(),
	}
	if _, err := o.dispatcher.Send(ctx, alert); err != nil {
		o.log.ErrorWithErr(intake.PatientID, workflowID, "Emergency alert dispatch failed", err, nil)
	} else {
		o.metrics.RecordAlert()
	}
	o.log.Error(intake.PatientID, workflowID, "Emergency escalation - workflow halted", map[string]interface{}{
		"red_flags": triage.RedFlags,
	})
}

func (o *CareOrchestrator) runDiagnosis(ctx context.Context, workflowID string, intake types.PatientIntake, triage TriageResult) (DiagnosisResult, error) {
	stageStart := o.now()

	var record *types.PatientRecord
	if found, ok := o.patients.Lookup(intake.PatientID); ok {
		record = &found
	} else {
		// Intake-supplied history covers patients not yet in the
		// directory.
		record = &types.PatientRecord{
			PatientID:          intake.PatientID,
			Age:                intake.Age,
			Gender:             intake.Gender,
			MedicalHistory:     intake.MedicalHistory,
			CurrentMedications: intake.Medications,
			Allergies:          intake.Allergies,
		}
	}

	picture := BuildClinicalPicture(triage, record)

	analysis, agentName := o.agentText(ctx, "diagnosis", workflowID,
		fmt.Sprintf("Chief complaint: %s\nUrgency: %d\nHistory: %s\nProvide a differential assessment.",
			picture.ChiefComplaint, picture.UrgencyLevel, strings.Join(picture.MedicalHistory, ", ")))
	if analysis == "" {
		analysis = fmt.Sprintf("Working assessment for %q pending physician review", picture.ChiefComplaint)
	}

	referral := AssessSpecialistNeed(picture, analysis)
	diagnosis := NewDiagnosisResult(intake.PatientID, triage.TriageID, picture, analysis, "", referral, o.now())

	o.metrics.RecordStage("diagnosis", o.now().Sub(stageStart), nil)
	o.audit.LogStage(workflowID, intake.PatientID, "diagnosis", agentName, "completed", o.now().Sub(stageStart).Milliseconds())
	return diagnosis, nil
}

func (o *CareOrchestrator) runTreatment(ctx context.Context, workflowID string, intake types.PatientIntake, diagnosis DiagnosisResult) (TreatmentResult, error) {
	stageStart := o.now()

	safety := RunSafetyChecks(intake.ProposedMedications, intake)

	plan, agentName := o.agentText(ctx, "treatment", workflowID,
		fmt.Sprintf("Assessment: %s\nDraft a conservative treatment plan.", diagnosis.Analysis))
	if plan == "" {
		plan = "Symptomatic management with routine follow-up pending physician review"
	}

	education := GeneratePatientEducation(intake.ProposedMedications, plan)
	treatment := NewTreatmentResult(intake.PatientID, diagnosis.DiagnosisID, plan, intake.ProposedMedications, safety, education, o.now())

	status := treatment.Status
	o.metrics.RecordStage("treatment", o.now().Sub(stageStart), nil)
	o.audit.LogStage(workflowID, intake.PatientID, "treatment", agentName, status, o.now().Sub(stageStart).Milliseconds())
	return treatment, nil
}

func (o *CareOrchestrator) runDocumentation(ctx context.Context, workflowID string, triage TriageResult, diagnosis DiagnosisResult, treatment TreatmentResult) DocumentationResult {
	stageStart := o.now()

	data := AggregateSOAPData(&triage, &diagnosis, &treatment)
	note := GenerateSOAPNote(data, o.now())
	doc := NewDocumentationResult(triage.PatientID, note, o.now())
	doc.Transcription = o.generateTranscription(ctx, workflowID, triage, diagnosis)

	o.metrics.RecordStage("documentation", o.now().Sub(stageStart), nil)
	o.audit.LogStage(workflowID, triage.PatientID, "documentation", "medical-scribe", "completed", o.now().Sub(stageStart).Milliseconds())
	return doc
}

// generateTranscription drafts a narrative transcription from the
// presenting keywords. Generation failures leave the field empty; the
// SOAP note is the authoritative document.
func (o *CareOrchestrator) generateTranscription(ctx context.Context, workflowID string, triage TriageResult, diagnosis DiagnosisResult) string {
	specialty := ""
	if len(diagnosis.SpecialistReferral.Recommendations) > 0 {
		specialty = diagnosis.SpecialistReferral.Recommendations[0].Specialty
	}

	prompt := llm.TranscriptionPrompt(triage.ChiefComplaint, specialty)
	text, err := o.medgen.Generate(ctx, prompt, 0, 0, 0)
	if err != nil {
		o.log.ErrorWithErr(triage.PatientID, workflowID, "Transcription generation failed", err, nil)
		return ""
	}
	return text
}

func (o *CareOrchestrator) runScheduling(workflowID, patientID string, diagnosis DiagnosisResult, treatment TreatmentResult) SchedulingResult {
	stageStart := o.now()

	requirements := ParseSchedulingRequirements(&diagnosis, treatment.Plan, monitoringParams(treatment))
	result := ScheduleAll(patientID, requirements, o.now())

	o.metrics.RecordStage("scheduling", o.now().Sub(stageStart), nil)
	o.audit.LogStage(workflowID, patientID, "scheduling", "", result.Status, o.now().Sub(stageStart).Milliseconds())
	return result
}

// monitoringParams derives monitoring parameters from the treatment
// plan text.
func monitoringParams(treatment TreatmentResult) []string {
	var params []string
	if strings.Contains(strings.ToLower(treatment.Plan), "lab") {
		params = append(params, "lab work")
	}
	return params
}

// agentText runs the configured agent for a stage and returns its
// content. Agent failures degrade to heuristic output rather than
// failing the stage.
func (o *CareOrchestrator) agentText(ctx context.Context, stage, workflowID, prompt string) (text, agentName string) {
	agent, ok := o.agents.ForStage(stage)
	if !ok {
		return "", ""
	}

	maxTokens := DefaultAgentMaxTokens
	temperature := DefaultAgentTemperature
	if agent.LLM != nil {
		if agent.LLM.MaxTokens > 0 {
			maxTokens = agent.LLM.MaxTokens
		}
		if agent.LLM.Temperature > 0 {
			temperature = agent.LLM.Temperature
		}
	}

	result, err := o.client.Execute(ctx, agent.Name, workflowID, agent.SystemPrompt, prompt, maxTokens, temperature)
	if err != nil {
		promAgentCalls.WithLabelValues(o.client.Provider().Name(), "error").Inc()
		o.log.ErrorWithErr("", workflowID, "Agent call failed, using heuristic output", err, map[string]interface{}{
			"agent": agent.Name,
			"stage": stage,
		})
		return "", agent.Name
	}
	promAgentCalls.WithLabelValues(o.client.Provider().Name(), "success").Inc()
	return result.Content, agent.Name
}

func (o *CareOrchestrator) recordWorkflow(result WorkflowResult) {
	o.metrics.RecordWorkflow(result.Status, result.UrgencyLevel)
	o.audit.LogWorkflow(result.WorkflowID, result.PatientID, result.Status, result.UrgencyLevel,
		int64(result.DurationSeconds*1000), result.Error)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.workflowsRun++
	o.history = append(o.history, result)
	if len(o.history) > workflowHistoryMax {
		o.history = o.history[len(o.history)-workflowHistoryMax:]
	}
}

// QuickTriage runs only the triage heuristics, without enrolling the
// patient in a workflow.
func (o *CareOrchestrator) QuickTriage(patientID, symptoms string) (TriageResult, error) {
	if strings.TrimSpace(symptoms) == "" {
		return TriageResult{}, fmt.Errorf("symptoms are required")
	}

	redFlags := CheckRedFlags(symptoms)
	urgency, _ := ClassifyUrgency(symptoms)
	if redFlags.HasRedFlags {
		urgency = redFlags.RecommendedUrgency
	}

	assessment := fmt.Sprintf("Symptom-based urgency tier %d (%s)", urgency, UrgencyDescription(urgency))
	return NewTriageResult(patientID, symptoms, assessment, urgency, redFlags.Found, o.now()), nil
}

// GetStatus reports orchestrator health and counters.
func (o *CareOrchestrator) GetStatus() OrchestratorStatus {
	o.mu.Lock()
	workflowsRun := o.workflowsRun
	o.mu.Unlock()

	return OrchestratorStatus{
		Agents:        o.agents.AgentNames(),
		WorkflowsRun:  workflowsRun,
		MonitorStats:  o.registry.Stats(),
		Metrics:       o.metrics.Snapshot(),
		AgentRegistry: o.agents.Stats(),
	}
}

// WorkflowHistory returns the most recent workflow results, newest
// last.
func (o *CareOrchestrator) WorkflowHistory(limit int) []WorkflowResult {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	start := len(o.history) - limit
	if start < 0 {
		start = 0
	}
	out := make([]WorkflowResult, len(o.history)-start)
	copy(out, o.history[start:])
	return out
}

// RunMonitoringCycle checks every enrolled patient whose follow-up is
// due.
func (o *CareOrchestrator) RunMonitoringCycle(ctx context.Context) ([]FollowUpResult, error) {
	results, err := o.followup.RunMonitoringCycle(ctx)
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		for range result.Alerts {
			o.metrics.RecordAlert()
		}
	}
	return results, nil
}

// Patients exposes the directory for the HTTP layer.
func (o *CareOrchestrator) Patients() *PatientDirectory {
	return o.patients
}

// Audit exposes the audit logger for shutdown handling.
func (o *CareOrchestrator) Audit() *WorkflowAuditLogger {
	return o.audit
}
