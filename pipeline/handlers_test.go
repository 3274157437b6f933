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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *apiServer {
	t.Helper()
	orch, _ := newTestOrchestrator(t)
	return newAPIServer(orch, nil)
}

func doRequest(s *apiServer, method, path string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	components, ok := body["components"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "healthy", components["orchestrator"])
	assert.Equal(t, true, components["audit_logger"])
}

func TestWorkflowEndpoint(t *testing.T) {
	s := newTestServer(t)

	payload := `{"patient_id": "P002", "symptoms": "Mild skin irritation on forearm"}`
	rec := doRequest(s, "POST", "/api/v1/workflow", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	var result WorkflowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "P002", result.PatientID)
	require.NotNil(t, result.Steps.Triage)
	require.NotNil(t, result.Steps.Documentation)
}

func TestWorkflowEndpointRejectsBadBody(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "POST", "/api/v1/workflow", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestWorkflowEndpointReturnsFailedResult(t *testing.T) {
	s := newTestServer(t)

	// Missing symptoms fails validation before the pipeline starts.
	rec := doRequest(s, "POST", "/api/v1/workflow", `{"patient_id": "P001"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var result WorkflowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, StatusError, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestTriageEndpoint(t *testing.T) {
	s := newTestServer(t)

	payload := `{"patient_id": "P001", "symptoms": "Crushing chest pain and shortness of breath"}`
	rec := doRequest(s, "POST", "/api/v1/triage", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	var result TriageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, UrgencyImmediate, result.UrgencyLevel)
	assert.NotEmpty(t, result.RedFlags)
}

func TestTriageEndpointRejectsBlankSymptoms(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "POST", "/api/v1/triage", `{"patient_id": "P001", "symptoms": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatientEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/patients/P001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "John Smith")

	rec = doRequest(s, "GET", "/api/v1/patients/P999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "patient P999 not found")
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status OrchestratorStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status.Agents, "triage-nurse")
	assert.Zero(t, status.WorkflowsRun)
}

func TestHistoryEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/workflows/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "limit must be an integer")

	rec = doRequest(s, "GET", "/api/v1/workflows/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]WorkflowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body["workflows"])
}

func TestMonitoringCycleEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "POST", "/api/v1/monitoring/cycle", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["patients_checked"])
}

func TestMonitorEndpointNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/monitoring/P001", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not enrolled in monitoring")
}

func TestJWTMiddleware(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	secret := []byte("test-secret")
	s := newAPIServer(orch, secret)

	// Health stays open without a token.
	rec := doRequest(s, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// API routes reject missing and malformed tokens.
	rec = doRequest(s, "GET", "/api/v1/status", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing bearer token")

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")

	// A token signed with the wrong key is rejected.
	wrong := signTestToken(t, []byte("other-secret"))
	req = httptest.NewRequest("GET", "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+wrong)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A properly signed token passes through.
	valid := signTestToken(t, secret)
	req = httptest.NewRequest("GET", "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func signTestToken(t *testing.T, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "care-team",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestWriteErrorShape(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.writeError(rec, http.StatusTeapot, "nope")

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Body.String(), `"error":"nope"`))
}
