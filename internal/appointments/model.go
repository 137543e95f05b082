package appointments

import (
	"time"
)

// Status is the lifecycle state of an appointment. The string values are
// part of the persisted schema and must not change.
type Status string

const (
	StatusPending     Status = "pending"
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusRescheduled Status = "rescheduled"
	StatusNoShow      Status = "no-show"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// AllStatuses lists every valid status value.
var AllStatuses = []Status{
	StatusPending,
	StatusScheduled,
	StatusConfirmed,
	StatusRescheduled,
	StatusNoShow,
	StatusCompleted,
	StatusCancelled,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Blocking reports whether an appointment in this status still occupies its
// (doctor, date, time-range) slot. Cancelled appointments release their slot;
// rescheduled ones have been superseded by a replacement and release it too.
func (s Status) Blocking() bool {
	return s != StatusCancelled && s != StatusRescheduled
}

// Origin identifies which admission path created an appointment.
type Origin string

const (
	OriginStaff         Origin = "staff"
	OriginWalkIn        Origin = "walk-in"
	OriginPatientPortal Origin = "patient-portal"
)

const (
	// MinDurationMins and MaxDurationMins bound a bookable appointment length.
	MinDurationMins = 15
	MaxDurationMins = 240
)

// Appointment is the central scheduling entity. Field names and formats match
// the store schema: Date is "2006-01-02", Time is a 24h clock "15:04".
type Appointment struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	PatientID         string    `json:"patient_id"`
	DoctorID          string    `json:"doctor_id,omitempty"`
	Room              string    `json:"room,omitempty"`
	Date              string    `json:"date"`
	Time              string    `json:"time,omitempty"`
	DurationMins      int       `json:"duration_mins"`
	IsWalkIn          bool      `json:"is_walk_in"`
	QueueNumber       int       `json:"queue_number,omitempty"`
	EstimatedWaitMins int       `json:"estimated_wait_mins,omitempty"`
	Status            Status    `json:"status"`
	Reason            string    `json:"reason,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	CreatedBy         string    `json:"created_by,omitempty"`
}

// StartsAt resolves the appointment's scheduled moment in the given location.
// An appointment without a time-of-day resolves to the start of its day.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", a.Date, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "must be formatted as YYYY-MM-DD"}
	}
	if a.Time == "" {
		return day, nil
	}
	clock, err := time.ParseInLocation("15:04", a.Time, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "time", Reason: "must be formatted as HH:MM"}
	}
	return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), nil
}

// CreateRequest carries the caller-supplied fields for a new appointment.
// Origin selects the initial status and the queue behavior.
type CreateRequest struct {
	Origin       Origin `json:"-"`
	PatientID    string `json:"patient_id"`
	DoctorID     string `json:"doctor_id"`
	Room         string `json:"room"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	DurationMins int    `json:"duration_mins"`
	Reason       string `json:"reason"`
	Notes        string `json:"notes"`
	CreatedBy    string `json:"created_by"`
}

// Validate rejects malformed input before any store access. Walk-ins join the
// day's queue without a reserved time, so their time-of-day is optional.
func (r *CreateRequest) Validate() error {
	if r.PatientID == "" {
		return &ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if r.Date == "" {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return &ValidationError{Field: "date", Reason: "must be formatted as YYYY-MM-DD"}
	}
	if r.Origin != OriginWalkIn {
		if r.Time == "" {
			return &ValidationError{Field: "time", Reason: "is required"}
		}
		if r.DoctorID == "" {
			return &ValidationError{Field: "doctor_id", Reason: "is required"}
		}
	}
	if r.Time != "" {
		if _, err := time.Parse("15:04", r.Time); err != nil {
			return &ValidationError{Field: "time", Reason: "must be formatted as HH:MM"}
		}
	}
	if r.DurationMins != 0 && (r.DurationMins < MinDurationMins || r.DurationMins > MaxDurationMins) {
		return &ValidationError{Field: "duration_mins", Reason: "must be between 15 and 240"}
	}
	return nil
}
