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
	"time"

	"careflow/platform/shared/logger"
	"careflow/platform/shared/types"
)

// Alert is a care-team notification raised by the follow-up stage.
type Alert struct {
	AlertID   string              `json:"alert_id"`
	PatientID string              `json:"patient_id"`
	AlertType string              `json:"alert_type"`
	Kind      string              `json:"kind"`
	Severity  types.AlertSeverity `json:"severity"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
}

// AlertConfirmation acknowledges a dispatched alert.
type AlertConfirmation struct {
	AlertID     string    `json:"alert_id"`
	Delivered   bool      `json:"delivered"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Dispatcher delivers alerts to the care team.
type Dispatcher interface {
	Send(ctx context.Context, alert Alert) (AlertConfirmation, error)
}

// LogDispatcher is a Dispatcher that writes alerts to the structured
// log. It stands in for a paging or messaging integration.
type LogDispatcher struct {
	log *logger.Logger
	now func() time.Time
}

// NewLogDispatcher returns a log-backed dispatcher.
func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{
		log: logger.New("alert-dispatcher"),
		now: time.Now,
	}
}

// SetClock overrides the dispatcher clock. Test hook.
func (d *LogDispatcher) SetClock(clock func() time.Time) {
	d.now = clock
}

// Send assigns the alert an ID and records it. Never fails.
func (d *LogDispatcher) Send(ctx context.Context, alert Alert) (AlertConfirmation, error) {
	now := d.now()
	if alert.AlertID == "" {
		alert.AlertID = fmt.Sprintf("ALT-%s-%s", alert.PatientID, now.Format(idTimestampFormat))
	}
	d.log.Warn(alert.PatientID, "", "Care team alert dispatched", map[string]interface{}{
		"alert_id":   alert.AlertID,
		"alert_type": alert.AlertType,
		"kind":       alert.Kind,
		"severity":   string(alert.Severity),
		"message":    alert.Message,
	})
	return AlertConfirmation{
		AlertID:     alert.AlertID,
		Delivered:   true,
		DeliveredAt: now,
	}, nil
}
