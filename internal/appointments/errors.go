package appointments

import "fmt"

// ValidationError reports malformed or missing input. It is raised before any
// store access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("appointments: %s %s", e.Field, e.Reason)
}

// ConflictError reports a status transition that does not match the allowed
// table for the current persisted status, or a conditional write that lost a
// race. Both statuses are carried so the caller can refresh and retry.
type ConflictError struct {
	Current   Status
	Requested Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("appointments: cannot transition from %q to %q", e.Current, e.Requested)
}

// SlotUnavailableError reports a requested doctor/date/time that overlaps an
// existing non-cancelled appointment.
type SlotUnavailableError struct {
	DoctorID string
	Date     string
	Time     string
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("appointments: slot %s %s for doctor %s is not available", e.Date, e.Time, e.DoctorID)
}

// PolicyDeniedError reports a patient-initiated cancellation rejected by the
// cancellation policy.
type PolicyDeniedError struct {
	Reason string
}

func (e *PolicyDeniedError) Error() string {
	return "appointments: cancellation denied: " + e.Reason
}

// NotFoundError reports a referenced record that does not resolve.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("appointments: %s %s not found", e.Resource, e.ID)
}
