package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/scheduling/internal/availability"
	"github.com/clinicdesk/scheduling/internal/notify"
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.ConfirmationEvent
}

func (f *fakeNotifier) AppointmentConfirmed(ctx context.Context, evt notify.ConfirmationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return nil
}

var testNow = time.Date(2024, 5, 30, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *InMemoryStore, *fakeNotifier) {
	t.Helper()
	store := NewInMemoryStore()
	notifier := &fakeNotifier{}
	hours := availability.UniformWeek("08:00", "17:00", []time.Weekday{time.Sunday})
	calc := availability.New(hours, 30, 0, time.UTC).WithNow(func() time.Time { return testNow })
	svc := NewService(store, nil, calc, notifier, nil, nil, Defaults{
		DurationMins:        30,
		WalkInWaitMins:      30,
		PatientMinLead:      2 * time.Hour,
		PatientMaxAheadDays: 30,
	}, time.UTC).WithNow(func() time.Time { return testNow })
	return svc, store, notifier
}

func TestCreateScheduled(t *testing.T) {
	svc, _, _ := newTestService(t)

	appt, err := svc.CreateScheduled(context.Background(), CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
		Reason: "checkup", CreatedBy: "staff-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.False(t, appt.IsWalkIn)
	assert.Zero(t, appt.QueueNumber)
	assert.Equal(t, 30, appt.DurationMins)
	assert.NotEmpty(t, appt.ID)
	assert.NotEmpty(t, appt.Code)
}

func TestCreateScheduledRejectsOverlap(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	require.NoError(t, err)

	// Exact duplicate.
	_, err = svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p2", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	var slotErr *SlotUnavailableError
	require.ErrorAs(t, err, &slotErr)

	// Offset but overlapping: 09:15 intersects [09:00, 09:30).
	_, err = svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p2", DoctorID: "d1", Date: "2024-06-01", Time: "09:15",
	})
	require.ErrorAs(t, err, &slotErr)

	// Back-to-back is fine: [09:30, 10:00) does not intersect.
	_, err = svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p2", DoctorID: "d1", Date: "2024-06-01", Time: "09:30",
	})
	assert.NoError(t, err)

	// Another doctor is unaffected.
	_, err = svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p3", DoctorID: "d2", Date: "2024-06-01", Time: "09:00",
	})
	assert.NoError(t, err)
}

func TestCreateScheduledIgnoresCancelledOverlap(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	require.NoError(t, err)
	_, err = store.ConditionalUpdateStatus(ctx, appt.ID, StatusScheduled, StatusCancelled)
	require.NoError(t, err)

	_, err = svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p2", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	assert.NoError(t, err)
}

func TestCreateWalkIn(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateWalkIn(ctx, "p1", "2024-05-30", "fever")
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, first.Status)
	assert.True(t, first.IsWalkIn)
	assert.Equal(t, 1, first.QueueNumber)
	assert.Equal(t, 30, first.EstimatedWaitMins)
	assert.Empty(t, first.DoctorID)

	second, err := svc.CreateWalkIn(ctx, "p2", "2024-05-30", "")
	require.NoError(t, err)
	assert.Equal(t, 2, second.QueueNumber)
}

func TestCreateWalkInRejectsOtherDay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var vErr *ValidationError
	_, err := svc.CreateWalkIn(ctx, "p1", "2024-06-01", "")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "date", vErr.Field)

	_, err = svc.CreateWalkIn(ctx, "p1", "2024-05-29", "")
	require.ErrorAs(t, err, &vErr)
}

func TestCreateWalkInDefaultsToToday(t *testing.T) {
	svc, _, _ := newTestService(t)

	appt, err := svc.CreateWalkIn(context.Background(), "p1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-30", appt.Date)
}

func TestCreateWalkInConcurrentNumbersAreUnique(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	const n = 20
	numbers := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appt, err := svc.CreateWalkIn(ctx, "p", "2024-05-30", "")
			if err != nil {
				t.Errorf("create walk-in: %v", err)
				return
			}
			numbers <- appt.QueueNumber
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool, n)
	for number := range numbers {
		assert.False(t, seen[number], "queue number %d assigned twice", number)
		seen[number] = true
	}
	for i := 1; i <= n; i++ {
		assert.True(t, seen[i], "queue number %d missing", i)
	}
}

func TestCreatePatientRequested(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreatePatientRequested(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
	assert.False(t, appt.IsWalkIn)
}

func TestCreatePatientRequestedBookingWindow(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Inside the two-hour minimum lead.
	_, err := svc.CreatePatientRequested(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-05-30", Time: "13:00",
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "time", vErr.Field)

	// Beyond the thirty-day horizon.
	_, err = svc.CreatePatientRequested(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-07-15", Time: "09:00",
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "date", vErr.Field)
}

func TestListAvailableSlotsExcludesBooked(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	require.NoError(t, err)
	_, err = svc.TransitionStatus(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)

	slots, err := svc.ListAvailableSlots(ctx, "d1", "2024-06-01")
	require.NoError(t, err)
	assert.NotContains(t, slots, "09:00")
	assert.Contains(t, slots, "08:30")
	assert.Contains(t, slots, "09:30")
	assert.Equal(t, "08:00", slots[0])
}

func TestTransitionStatusHappyPaths(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	require.NoError(t, err)

	confirmed, err := svc.TransitionStatus(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, appt.ID, notifier.events[0].AppointmentID)

	completed, err := svc.TransitionStatus(ctx, appt.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	// Completion is not a confirmation; no extra signal.
	assert.Len(t, notifier.events, 1)
}

func TestTransitionStatusRejectsInvalid(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	require.NoError(t, err)

	_, err = svc.TransitionStatus(ctx, appt.ID, StatusCompleted)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, StatusScheduled, conflict.Current)
	assert.Equal(t, StatusCompleted, conflict.Requested)

	// The stored record is untouched by the rejected request.
	loaded, err := store.FindByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, loaded.Status)

	_, err = svc.TransitionStatus(ctx, appt.ID, Status("archived"))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = svc.TransitionStatus(ctx, "missing-id", StatusConfirmed)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestTerminalStatesStayTerminal(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	require.NoError(t, err)
	_, err = svc.TransitionStatus(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = svc.TransitionStatus(ctx, appt.ID, StatusCompleted)
	require.NoError(t, err)

	var conflict *ConflictError
	for i := 0; i < 3; i++ {
		for _, requested := range AllStatuses {
			_, err := svc.TransitionStatus(ctx, appt.ID, requested)
			require.ErrorAs(t, err, &conflict, "completed -> %s must fail", requested)
		}
	}
	loaded, err := store.FindByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, loaded.Status)
}

func TestCancelAsPatient(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Tomorrow: cancellable.
	future, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-05-31", Time: "09:00",
	})
	require.NoError(t, err)
	cancelled, err := svc.CancelAsPatient(ctx, future.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// Yesterday: policy denies.
	past, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-05-29", Time: "09:00",
	})
	require.NoError(t, err)
	_, err = svc.CancelAsPatient(ctx, past.ID, "p1")
	var denied *PolicyDeniedError
	require.ErrorAs(t, err, &denied)

	// Someone else's appointment reads as not found.
	other, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p2", DoctorID: "d1", Date: "2024-05-31", Time: "10:00",
	})
	require.NoError(t, err)
	_, err = svc.CancelAsPatient(ctx, other.ID, "p1")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestPendingConfirmThenPatientCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreatePatientRequested(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, appt.Status)

	confirmed, err := svc.TransitionStatus(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)

	cancelled, err := svc.CancelAsPatient(ctx, appt.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

func TestListWalkInQueue(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateWalkIn(ctx, "p1", "2024-05-30", "")
	require.NoError(t, err)
	second, err := svc.CreateWalkIn(ctx, "p2", "2024-05-30", "")
	require.NoError(t, err)

	third, err := svc.CreateWalkIn(ctx, "p3", "2024-05-30", "")
	require.NoError(t, err)
	assert.Equal(t, 3, third.QueueNumber)

	queue, err := svc.ListWalkInQueue(ctx, "2024-05-30")
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{queue[0].QueueNumber, queue[1].QueueNumber, queue[2].QueueNumber})

	// A cancelled walk-in drops out of the view but its number stays burned.
	_, err = svc.TransitionStatus(ctx, second.ID, StatusCancelled)
	require.NoError(t, err)
	queue, err = svc.ListWalkInQueue(ctx, "2024-05-30")
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].ID)
	assert.Equal(t, third.ID, queue[1].ID)

	fourth, err := svc.CreateWalkIn(ctx, "p4", "2024-05-30", "")
	require.NoError(t, err)
	assert.Equal(t, 4, fourth.QueueNumber)
}

func TestReschedule(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	old, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00", Reason: "checkup",
	})
	require.NoError(t, err)

	replacement, err := svc.Reschedule(ctx, old.ID, CreateRequest{
		Date: "2024-06-03", Time: "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, replacement.Status)
	assert.Equal(t, "2024-06-03", replacement.Date)
	assert.Equal(t, "d1", replacement.DoctorID)
	assert.Equal(t, "checkup", replacement.Reason)
	assert.NotEqual(t, old.ID, replacement.ID)

	superseded, err := store.FindByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, superseded.Status)

	// The vacated slot is bookable again.
	slots, err := svc.ListAvailableSlots(ctx, "d1", "2024-06-01")
	require.NoError(t, err)
	assert.Contains(t, slots, "09:00")

	// Terminal appointments cannot be rescheduled.
	done, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p2", DoctorID: "d2", Date: "2024-06-01", Time: "09:00",
	})
	require.NoError(t, err)
	_, err = svc.TransitionStatus(ctx, done.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = svc.TransitionStatus(ctx, done.ID, StatusCompleted)
	require.NoError(t, err)
	_, err = svc.Reschedule(ctx, done.ID, CreateRequest{Date: "2024-06-03", Time: "11:00"})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestRescheduleDropsQueueFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	walkIn, err := svc.CreateWalkIn(ctx, "p1", "2024-05-30", "")
	require.NoError(t, err)
	require.True(t, walkIn.IsWalkIn)

	replacement, err := svc.Reschedule(ctx, walkIn.ID, CreateRequest{
		DoctorID: "d1", Date: "2024-06-03", Time: "10:00",
	})
	require.NoError(t, err)
	assert.False(t, replacement.IsWalkIn)
	assert.Zero(t, replacement.QueueNumber)

	queue, err := svc.ListWalkInQueue(ctx, "2024-05-30")
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestServiceValidationBeforeStore(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, err := svc.CreateScheduled(context.Background(), CreateRequest{
		DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "patient_id", vErr.Field)

	appts, err := store.FindByDoctorAndDate(context.Background(), "d1", "2024-06-01")
	require.NoError(t, err)
	assert.Empty(t, appts, "nothing may be persisted for invalid input")
}

func TestConcurrentTransitionsProduceOneWinner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreateScheduled(ctx, CreateRequest{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
	})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.TransitionStatus(ctx, appt.ID, StatusConfirmed)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	winners := 0
	for err := range errs {
		if err == nil {
			winners++
			continue
		}
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected ConflictError for losers, got %v", err)
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent confirm may win")
}
