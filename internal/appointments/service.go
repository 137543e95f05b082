package appointments

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicdesk/scheduling/internal/availability"
	"github.com/clinicdesk/scheduling/internal/notify"
	"github.com/clinicdesk/scheduling/internal/observability/metrics"
	"github.com/clinicdesk/scheduling/internal/queue"
	"github.com/clinicdesk/scheduling/pkg/logging"
)

var tracer = otel.Tracer("clinicdesk.internal.appointments")

// Defaults carries tunable scheduling parameters.
type Defaults struct {
	DurationMins        int
	WalkInWaitMins      int
	PatientMinLead      time.Duration
	PatientMaxAheadDays int
}

// Service owns the appointment lifecycle: the two staff admission paths, the
// patient portal path, status transitions, patient cancellation and the
// walk-in queue view.
type Service struct {
	store    Store
	seq      queue.Sequencer
	calc     *availability.Calculator
	policy   *CancellationPolicy
	notifier notify.Notifier
	metrics  *metrics.AppointmentMetrics
	logger   *logging.Logger
	defaults Defaults
	loc      *time.Location
	now      func() time.Time
}

// NewService wires the scheduling core together. notifier and metrics may be
// nil; logger falls back to the default.
func NewService(
	store Store,
	seq queue.Sequencer,
	calc *availability.Calculator,
	notifier notify.Notifier,
	m *metrics.AppointmentMetrics,
	logger *logging.Logger,
	defaults Defaults,
	loc *time.Location,
) *Service {
	if store == nil {
		panic("appointments: store required")
	}
	if seq == nil {
		seq = queue.NewStoreSequencer(store)
	}
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	if defaults.DurationMins == 0 {
		defaults.DurationMins = 30
	}
	if defaults.WalkInWaitMins == 0 {
		defaults.WalkInWaitMins = 30
	}
	return &Service{
		store:    store,
		seq:      seq,
		calc:     calc,
		policy:   NewCancellationPolicy(loc),
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		defaults: defaults,
		loc:      loc,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateScheduled books a regular staff-scheduled appointment. The requested
// slot must not overlap any non-cancelled appointment of the same doctor.
func (s *Service) CreateScheduled(ctx context.Context, req CreateRequest) (*Appointment, error) {
	req.Origin = OriginStaff
	return s.create(ctx, req)
}

// CreateWalkIn admits a walk-in patient into the day's queue: status
// scheduled, a freshly reserved queue number and the fixed wait estimate.
// Walk-ins are by definition present at the clinic, so only the current
// clinic day is accepted.
func (s *Service) CreateWalkIn(ctx context.Context, patientID, date, reason string) (*Appointment, error) {
	today := s.now().In(s.loc).Format("2006-01-02")
	if date == "" {
		date = today
	} else if date != today {
		return nil, &ValidationError{Field: "date", Reason: "walk-ins are admitted for the current day only"}
	}
	req := CreateRequest{
		Origin:    OriginWalkIn,
		PatientID: patientID,
		Date:      date,
		Reason:    reason,
	}
	return s.create(ctx, req)
}

// CreatePatientRequested books through the patient portal. The appointment
// starts pending and must fall inside the patient booking window.
func (s *Service) CreatePatientRequested(ctx context.Context, req CreateRequest) (*Appointment, error) {
	req.Origin = OriginPatientPortal
	return s.create(ctx, req)
}

func (s *Service) create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicdesk.origin", string(req.Origin)),
		attribute.String("clinicdesk.date", req.Date),
	)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.DurationMins == 0 {
		req.DurationMins = s.defaults.DurationMins
	}

	if req.Origin == OriginPatientPortal {
		if err := s.checkBookingWindow(req.Date, req.Time); err != nil {
			return nil, err
		}
	}
	if req.DoctorID != "" && req.Time != "" {
		if err := s.checkSlotFree(ctx, req.DoctorID, req.Date, req.Time, req.DurationMins); err != nil {
			return nil, err
		}
	}

	appt := &Appointment{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		Room:         req.Room,
		Date:         req.Date,
		Time:         req.Time,
		DurationMins: req.DurationMins,
		Status:       InitialStatus(req.Origin),
		Reason:       req.Reason,
		Notes:        req.Notes,
		CreatedBy:    req.CreatedBy,
	}

	if req.Origin == OriginWalkIn {
		number, err := s.seq.Next(ctx, req.Date)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		appt.IsWalkIn = true
		appt.QueueNumber = number
		appt.EstimatedWaitMins = s.defaults.WalkInWaitMins
		s.metrics.ObserveQueueReserved()
	}

	created, err := s.store.Insert(ctx, appt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveCreated(string(req.Origin))
	s.logger.Info("appointment created",
		"id", created.ID,
		"code", created.Code,
		"origin", req.Origin,
		"status", created.Status,
		"queue_number", created.QueueNumber,
	)
	return created, nil
}

// ListAvailableSlots returns the doctor's free slot starts for the date.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID, date string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "appointments.list_slots")
	defer span.End()
	span.SetAttributes(attribute.String("clinicdesk.doctor_id", doctorID))

	if doctorID == "" {
		return nil, &ValidationError{Field: "doctor_id", Reason: "is required"}
	}
	if date == "" {
		return nil, &ValidationError{Field: "date", Reason: "is required"}
	}
	busy, err := s.busyIntervals(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	return s.calc.Slots(date, busy)
}

// TransitionStatus validates the requested transition against the current
// persisted status and applies it with a conditional write. Entering
// confirmed emits the reminder signal.
func (s *Service) TransitionStatus(ctx context.Context, id string, requested Status) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicdesk.appointment_id", id),
		attribute.String("clinicdesk.requested_status", string(requested)),
	)

	if !requested.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "is not a known status"}
	}
	appt, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, requested) {
		s.metrics.ObserveTransition(string(appt.Status), string(requested), "rejected")
		return nil, &ConflictError{Current: appt.Status, Requested: requested}
	}

	updated, err := s.store.ConditionalUpdateStatus(ctx, id, appt.Status, requested)
	if err != nil {
		s.metrics.ObserveTransition(string(appt.Status), string(requested), "conflict")
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveTransition(string(appt.Status), string(requested), "applied")
	s.logger.Info("appointment transitioned", "id", id, "from", appt.Status, "to", requested)

	if requested == StatusConfirmed {
		s.signalConfirmed(ctx, updated)
	}
	return updated, nil
}

// CancelAsPatient cancels through the self-service path, gated by the
// cancellation policy. The patient must own the appointment.
func (s *Service) CancelAsPatient(ctx context.Context, id, patientID string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.cancel_as_patient")
	defer span.End()
	span.SetAttributes(attribute.String("clinicdesk.appointment_id", id))

	if patientID == "" {
		return nil, &ValidationError{Field: "patient_id", Reason: "is required"}
	}
	appt, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != patientID {
		// Do not reveal other patients' appointments.
		return nil, &NotFoundError{Resource: "appointment", ID: id}
	}
	if err := s.policy.CheckPatientCancel(appt, s.now()); err != nil {
		s.metrics.ObserveTransition(string(appt.Status), string(StatusCancelled), "denied")
		return nil, err
	}

	updated, err := s.store.ConditionalUpdateStatus(ctx, id, appt.Status, StatusCancelled)
	if err != nil {
		s.metrics.ObserveTransition(string(appt.Status), string(StatusCancelled), "conflict")
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveTransition(string(appt.Status), string(StatusCancelled), "applied")
	s.logger.Info("appointment cancelled by patient", "id", id, "patient_id", patientID)
	return updated, nil
}

// ListWalkInQueue returns the day's live queue: walk-ins still scheduled or
// confirmed, ordered by queue number. Cancelled walk-ins drop out of the view
// but keep their numbers.
func (s *Service) ListWalkInQueue(ctx context.Context, date string) ([]*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.list_queue")
	defer span.End()

	if date == "" {
		date = s.now().In(s.loc).Format("2006-01-02")
	}
	all, err := s.store.FindWalkInsByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make([]*Appointment, 0, len(all))
	for _, appt := range all {
		if appt.Status == StatusScheduled || appt.Status == StatusConfirmed {
			out = append(out, appt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueueNumber < out[j].QueueNumber })
	return out, nil
}

// Reschedule moves an appointment to a new slot by superseding it: the old
// record is conditionally marked rescheduled and a fresh scheduled
// appointment is created for the new doctor/date/time. Queue fields are not
// carried over; a rescheduled walk-in rejoins as a regular booking.
func (s *Service) Reschedule(ctx context.Context, id string, req CreateRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("clinicdesk.appointment_id", id))

	old, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch old.Status {
	case StatusPending, StatusScheduled, StatusConfirmed:
	default:
		return nil, &ConflictError{Current: old.Status, Requested: StatusRescheduled}
	}

	req.Origin = OriginStaff
	req.PatientID = old.PatientID
	if req.DoctorID == "" {
		req.DoctorID = old.DoctorID
	}
	if req.DurationMins == 0 {
		req.DurationMins = old.DurationMins
	}
	if req.Reason == "" {
		req.Reason = old.Reason
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkSlotFree(ctx, req.DoctorID, req.Date, req.Time, req.DurationMins); err != nil {
		return nil, err
	}

	// Supersede first so a concurrent transition on the old record cannot
	// race past the guard; only the winner creates the replacement.
	if _, err := s.store.ConditionalUpdateStatus(ctx, id, old.Status, StatusRescheduled); err != nil {
		span.RecordError(err)
		return nil, err
	}

	replacement := &Appointment{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		Room:         req.Room,
		Date:         req.Date,
		Time:         req.Time,
		DurationMins: req.DurationMins,
		Status:       StatusScheduled,
		Reason:       req.Reason,
		Notes:        req.Notes,
		CreatedBy:    req.CreatedBy,
	}
	created, err := s.store.Insert(ctx, replacement)
	if err != nil {
		s.logger.Error("reschedule replacement insert failed, original left rescheduled",
			"id", id, "error", err)
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("appointment rescheduled", "old_id", id, "new_id", created.ID)
	return created, nil
}

func (s *Service) checkSlotFree(ctx context.Context, doctorID, date, clock string, durationMins int) error {
	start, err := availability.ParseClock(clock)
	if err != nil {
		return &ValidationError{Field: "time", Reason: "must be formatted as HH:MM"}
	}
	end := start + durationMins
	busy, err := s.busyIntervals(ctx, doctorID, date)
	if err != nil {
		return err
	}
	for _, b := range busy {
		if availability.Overlaps(start, end, b.Start, b.End) {
			return &SlotUnavailableError{DoctorID: doctorID, Date: date, Time: clock}
		}
	}
	return nil
}

func (s *Service) busyIntervals(ctx context.Context, doctorID, date string) ([]availability.Busy, error) {
	existing, err := s.store.FindByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	var busy []availability.Busy
	for _, appt := range existing {
		if !appt.Status.Blocking() || appt.Time == "" {
			continue
		}
		start, err := availability.ParseClock(appt.Time)
		if err != nil {
			continue
		}
		busy = append(busy, availability.Busy{Start: start, End: start + appt.DurationMins})
	}
	return busy, nil
}

func (s *Service) checkBookingWindow(date, clock string) error {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return &ValidationError{Field: "date", Reason: "must be formatted as YYYY-MM-DD"}
	}
	startMins, err := availability.ParseClock(clock)
	if err != nil {
		return &ValidationError{Field: "time", Reason: "must be formatted as HH:MM"}
	}
	startsAt := day.Add(time.Duration(startMins) * time.Minute)

	now := s.now().In(s.loc)
	if startsAt.Before(now.Add(s.defaults.PatientMinLead)) {
		return &ValidationError{Field: "time", Reason: "is inside the minimum booking lead time"}
	}
	if s.defaults.PatientMaxAheadDays > 0 {
		horizon := now.AddDate(0, 0, s.defaults.PatientMaxAheadDays)
		if startsAt.After(horizon) {
			return &ValidationError{Field: "date", Reason: "is beyond the maximum booking window"}
		}
	}
	return nil
}

func (s *Service) signalConfirmed(ctx context.Context, appt *Appointment) {
	if s.notifier == nil {
		return
	}
	evt := notify.ConfirmationEvent{
		AppointmentID: appt.ID,
		Code:          appt.Code,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Date:          appt.Date,
		Time:          appt.Time,
	}
	if err := s.notifier.AppointmentConfirmed(ctx, evt); err != nil {
		// Reminder delivery is best effort; the transition already happened.
		s.logger.Warn("confirmation signal failed", "id", appt.ID, "error", err)
	}
}
