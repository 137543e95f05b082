// Package notify signals appointment lifecycle events to the reminder
// delivery collaborator. Delivery itself lives outside this service; the
// implementations here only hand the event off.
package notify

import (
	"context"

	"github.com/clinicdesk/scheduling/pkg/logging"
)

// ConfirmationEvent describes an appointment that just entered the confirmed
// state.
type ConfirmationEvent struct {
	AppointmentID string `json:"appointment_id"`
	Code          string `json:"code"`
	PatientID     string `json:"patient_id"`
	DoctorID      string `json:"doctor_id,omitempty"`
	Date          string `json:"date"`
	Time          string `json:"time,omitempty"`
}

// Notifier receives the "confirmation occurred" signal.
type Notifier interface {
	AppointmentConfirmed(ctx context.Context, evt ConfirmationEvent) error
}

// LogNotifier records the signal in the structured log and nothing else. It
// stands in wherever a real reminder channel is not wired.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{logger: logger}
}

// AppointmentConfirmed logs the confirmation signal.
func (n *LogNotifier) AppointmentConfirmed(ctx context.Context, evt ConfirmationEvent) error {
	n.logger.Info("appointment confirmed, reminder signal emitted",
		"appointment_id", evt.AppointmentID,
		"code", evt.Code,
		"patient_id", evt.PatientID,
		"date", evt.Date,
		"time", evt.Time,
	)
	return nil
}
