package appointments

// allowedTransitions is the single source of truth for caller-invoked status
// changes. Pairs absent from the table are rejected with a ConflictError.
// Patient self-cancellation is gated separately by the cancellation policy
// and does not consult this table.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusScheduled: {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusNoShow},
}

// CanTransition reports whether a caller may move an appointment from its
// current persisted status to the requested one.
func CanTransition(current, requested Status) bool {
	for _, next := range allowedTransitions[current] {
		if next == requested {
			return true
		}
	}
	return false
}

// InitialStatus selects the entry state for a new appointment by admission
// path: staff bookings and walk-ins start scheduled, portal requests start
// pending and await staff approval.
func InitialStatus(origin Origin) Status {
	if origin == OriginPatientPortal {
		return StatusPending
	}
	return StatusScheduled
}
