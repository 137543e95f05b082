package appointments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the durable record of appointment documents. Updates go through
// conditional writes so concurrent transitions resolve to one winner, and the
// walk-in counter is reserved atomically rather than recomputed from a scan.
type Store interface {
	FindByID(ctx context.Context, id string) (*Appointment, error)
	FindByDoctorAndDate(ctx context.Context, doctorID, date string) ([]*Appointment, error)
	FindWalkInsByDate(ctx context.Context, date string) ([]*Appointment, error)
	Insert(ctx context.Context, appt *Appointment) (*Appointment, error)
	ConditionalUpdateStatus(ctx context.Context, id string, expected, next Status) (*Appointment, error)
	ReserveNextQueueNumber(ctx context.Context, date string) (int, error)
}

// InMemoryStore keeps appointments in process memory. It backs unit tests and
// DB-less development runs with the same conditional-write semantics as the
// Postgres store.
type InMemoryStore struct {
	mu       sync.Mutex
	appts    map[string]*Appointment
	counters map[string]int
	inserted int
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		appts:    make(map[string]*Appointment),
		counters: make(map[string]int),
	}
}

// FindByID returns the appointment or a NotFoundError.
func (s *InMemoryStore) FindByID(ctx context.Context, id string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appts[id]
	if !ok {
		return nil, &NotFoundError{Resource: "appointment", ID: id}
	}
	cp := *appt
	return &cp, nil
}

// FindByDoctorAndDate returns every appointment for the doctor on the date,
// ordered by time-of-day.
func (s *InMemoryStore) FindByDoctorAndDate(ctx context.Context, doctorID, date string) ([]*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Appointment
	for _, appt := range s.appts {
		if appt.DoctorID == doctorID && appt.Date == date {
			cp := *appt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// FindWalkInsByDate returns every walk-in appointment on the date, ordered by
// queue number.
func (s *InMemoryStore) FindWalkInsByDate(ctx context.Context, date string) ([]*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Appointment
	for _, appt := range s.appts {
		if appt.IsWalkIn && appt.Date == date {
			cp := *appt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueueNumber < out[j].QueueNumber })
	return out, nil
}

// Insert stores a new appointment, assigning its id, human-readable code and
// creation timestamp.
func (s *InMemoryStore) Insert(ctx context.Context, appt *Appointment) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *appt
	cp.ID = uuid.NewString()
	s.inserted++
	cp.Code = fmt.Sprintf("APT-%s-%04d", strings.ReplaceAll(appt.Date, "-", ""), s.inserted)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.appts[cp.ID] = &cp

	result := cp
	return &result, nil
}

// ConditionalUpdateStatus applies the new status only when the stored status
// still matches the expected one, returning a ConflictError otherwise.
func (s *InMemoryStore) ConditionalUpdateStatus(ctx context.Context, id string, expected, next Status) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appts[id]
	if !ok {
		return nil, &NotFoundError{Resource: "appointment", ID: id}
	}
	if appt.Status != expected {
		return nil, &ConflictError{Current: appt.Status, Requested: next}
	}
	appt.Status = next
	cp := *appt
	return &cp, nil
}

// ReserveNextQueueNumber increments and returns the walk-in counter for the
// date. Numbers are never handed out twice within a day.
func (s *InMemoryStore) ReserveNextQueueNumber(ctx context.Context, date string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[date]++
	return s.counters[date], nil
}
