package appointments

import "time"

// CancellationPolicy decides whether the owning patient may still cancel an
// appointment through the self-service path.
type CancellationPolicy struct {
	loc *time.Location
}

// NewCancellationPolicy builds a policy evaluating times in the clinic's
// location. A nil location defaults to the process-local zone.
func NewCancellationPolicy(loc *time.Location) *CancellationPolicy {
	if loc == nil {
		loc = time.Local
	}
	return &CancellationPolicy{loc: loc}
}

// CheckPatientCancel returns nil when the patient may cancel, or a
// PolicyDeniedError explaining why not. Terminal and no-show appointments are
// never patient-cancellable, and neither is anything already in the past.
func (p *CancellationPolicy) CheckPatientCancel(a *Appointment, now time.Time) error {
	switch a.Status {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return &PolicyDeniedError{Reason: "appointment is already " + string(a.Status)}
	}
	startsAt, err := a.StartsAt(p.loc)
	if err != nil {
		return err
	}
	if !startsAt.After(now) {
		return &PolicyDeniedError{Reason: "appointment time has already passed"}
	}
	return nil
}
