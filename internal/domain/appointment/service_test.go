package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/citamed/citamed/internal/platform/cache"
	"github.com/citamed/citamed/internal/platform/lock"
	"github.com/citamed/citamed/internal/platform/notification"
	"github.com/citamed/citamed/pkg/timeslot"
)

// mockRepo is a map-backed Repository for service tests.
type mockRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Appointment
	err   error
	calls map[string]int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		items: make(map[uuid.UUID]*Appointment),
		calls: make(map[string]int),
	}
}

func (r *mockRepo) record(op string) { r.calls[op]++ }

func (r *mockRepo) Insert(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("insert")
	if r.err != nil {
		return r.err
	}
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("get")
	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *mockRepo) Update(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("update")
	if r.err != nil {
		return r.err
	}
	if _, ok := r.items[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("delete")
	if r.err != nil {
		return r.err
	}
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *mockRepo) all() []*Appointment {
	var items []*Appointment
	for _, a := range r.items {
		cp := *a
		items = append(items, &cp)
	}
	return items
}

func (r *mockRepo) FindByDate(_ context.Context, date timeslot.Date, companyID *uuid.UUID) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("findByDate")
	if r.err != nil {
		return nil, r.err
	}
	var items []*Appointment
	for _, a := range r.all() {
		if a.Date != date {
			continue
		}
		if companyID != nil && a.CompanyID != *companyID {
			continue
		}
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Time < items[j].Time })
	return items, nil
}

func (r *mockRepo) FindByProfessional(_ context.Context, doctorID uuid.UUID, from, to timeslot.Date) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("findByProfessional")
	if r.err != nil {
		return nil, r.err
	}
	var items []*Appointment
	for _, a := range r.all() {
		if a.DoctorID == doctorID && a.Date >= from && a.Date <= to {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date < items[j].Date
		}
		return items[i].Time < items[j].Time
	})
	return items, nil
}

func matches(a *Appointment, f Filter) bool {
	if f.Date != nil && a.Date != *f.Date {
		return false
	}
	if f.DateFrom != nil && a.Date < *f.DateFrom {
		return false
	}
	if f.DateTo != nil && a.Date > *f.DateTo {
		return false
	}
	if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
		return false
	}
	if f.CompanyID != nil && a.CompanyID != *f.CompanyID {
		return false
	}
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	return true
}

func (r *mockRepo) FindByFilter(_ context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, 0, r.err
	}
	var items []*Appointment
	for _, a := range r.all() {
		if matches(a, f) {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date > items[j].Date
		}
		return items[i].Time > items[j].Time
	})
	total := len(items)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return items[offset:end], total, nil
}

func (r *mockRepo) FindRecent(_ context.Context, f Filter, n int) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var items []*Appointment
	for _, a := range r.all() {
		if matches(a, f) {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if len(items) > n {
		items = items[:n]
	}
	return items, nil
}

func (r *mockRepo) CountByFilter(_ context.Context, f Filter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	count := 0
	for _, a := range r.items {
		if matches(a, f) {
			count++
		}
	}
	return count, nil
}

type mockNotifier struct {
	mu     sync.Mutex
	sent   []string
	result notification.DispatchResult
}

func (n *mockNotifier) Notify(_ context.Context, templateID string, _ notification.Recipient) notification.DispatchResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, templateID)
	return n.result
}

func newTestService(repo Repository) (*Service, *mockNotifier, chan notification.DispatchResult) {
	notifier := &mockNotifier{}
	svc := NewService(repo, cache.NewInMemoryStore(), lock.NewKeyedMutexLocker(), notifier, zerolog.Nop())
	dispatched := make(chan notification.DispatchResult, 16)
	svc.OnDispatch(func(_ uuid.UUID, result notification.DispatchResult) {
		dispatched <- result
	})
	return svc, notifier, dispatched
}

func clock(t *testing.T, s string) timeslot.ClockTime {
	t.Helper()
	ct, err := timeslot.ParseClock(s)
	if err != nil {
		t.Fatalf("parse clock %q: %v", s, err)
	}
	return ct
}

func validInput(doctorID uuid.UUID, t timeslot.ClockTime) CreateInput {
	return CreateInput{
		PatientName:  "Ana Pérez",
		PatientEmail: "ana@example.com",
		DoctorID:     doctorID,
		DoctorName:   "Dr. Soto",
		Specialty:    "Cardiología",
		Date:         "2024-03-15",
		Time:         &t,
	}
}

func waitDispatch(t *testing.T, ch chan notification.DispatchResult) notification.DispatchResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not dispatched")
		return notification.DispatchResult{}
	}
}

func TestCreate_AppliesDefaults(t *testing.T) {
	svc, _, dispatched := newTestService(newMockRepo())

	a, err := svc.Create(context.Background(), validInput(uuid.New(), clock(t, "09:00")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusPending {
		t.Errorf("expected pending status, got %s", a.Status)
	}
	if a.DurationMin != 30 {
		t.Errorf("expected default duration 30, got %d", a.DurationMin)
	}
	if a.Type != "Consulta" {
		t.Errorf("expected default type Consulta, got %s", a.Type)
	}
	if a.CreatedAt.IsZero() || a.UpdatedAt.IsZero() {
		t.Error("audit timestamps not set")
	}
	if a.ID == uuid.Nil {
		t.Error("id not assigned")
	}
	waitDispatch(t, dispatched)
}

func TestCreate_MissingFieldsAllListed(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())

	_, err := svc.Create(context.Background(), CreateInput{PatientName: "Ana"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{"patientEmail", "doctorName", "date", "time", "specialty"}
	if len(verr.MissingFields) != len(want) {
		t.Fatalf("expected %d missing fields, got %v", len(want), verr.MissingFields)
	}
	for i, field := range want {
		if verr.MissingFields[i] != field {
			t.Errorf("missing field %d: got %s, want %s", i, verr.MissingFields[i], field)
		}
	}
}

func TestCreate_InvalidStatusRejected(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())

	in := validInput(uuid.New(), clock(t, "09:00"))
	in.Status = "scheduled"
	_, err := svc.Create(context.Background(), in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.InvalidFields) != 1 || verr.InvalidFields[0] != "status" {
		t.Errorf("expected invalid status field, got %v", verr.InvalidFields)
	}
}

func TestCreate_OverlapConflict(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())
	doctorID := uuid.New()

	first, err := svc.Create(context.Background(), validInput(doctorID, clock(t, "09:00")))
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	// 09:15 overlaps the 09:00-09:30 slot.
	_, err = svc.Create(context.Background(), validInput(doctorID, clock(t, "09:15")))
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if cerr.ConflictingID != first.ID {
		t.Errorf("conflict does not name the existing appointment")
	}
	if cerr.Time != first.Time {
		t.Errorf("conflict does not carry the existing slot time")
	}
}

func TestCreate_TouchingSlotsDoNotConflict(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())
	doctorID := uuid.New()

	if _, err := svc.Create(context.Background(), validInput(doctorID, clock(t, "09:00"))); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	// Starts exactly where the previous one ends.
	if _, err := svc.Create(context.Background(), validInput(doctorID, clock(t, "09:30"))); err != nil {
		t.Fatalf("back-to-back slot rejected: %v", err)
	}
}

func TestCreate_CancelledSlotDoesNotBlock(t *testing.T) {
	repo := newMockRepo()
	svc, _, _ := newTestService(repo)
	doctorID := uuid.New()

	in := validInput(doctorID, clock(t, "09:00"))
	in.Status = StatusCancelled
	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("cancelled create failed: %v", err)
	}
	if _, err := svc.Create(context.Background(), validInput(doctorID, clock(t, "09:00"))); err != nil {
		t.Fatalf("cancelled appointment must not block the slot: %v", err)
	}
}

func TestCreate_DifferentProfessionalsShareSlot(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())

	if _, err := svc.Create(context.Background(), validInput(uuid.New(), clock(t, "09:00"))); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.Create(context.Background(), validInput(uuid.New(), clock(t, "09:00"))); err != nil {
		t.Fatalf("different professional must be independent: %v", err)
	}
}

func TestCreate_ConcurrentSameSlotBooksOnce(t *testing.T) {
	repo := newMockRepo()
	svc, _, _ := newTestService(repo)
	doctorID := uuid.New()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), validInput(doctorID, clock(t, "10:00")))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, conflicted := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			var cerr *ConflictError
			if !errors.As(err, &cerr) {
				t.Errorf("unexpected error kind: %v", err)
			}
			conflicted++
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one booking to win, got %d", succeeded)
	}
	if conflicted != workers-1 {
		t.Errorf("expected %d conflicts, got %d", workers-1, conflicted)
	}
}

func TestCreate_NotificationFailureDoesNotFailCreate(t *testing.T) {
	repo := newMockRepo()
	notifier := &mockNotifier{result: notification.DispatchResult{EmailErr: errors.New("smtp down")}}
	svc := NewService(repo, cache.NewInMemoryStore(), lock.NewKeyedMutexLocker(), notifier, zerolog.Nop())
	dispatched := make(chan notification.DispatchResult, 1)
	svc.OnDispatch(func(_ uuid.UUID, result notification.DispatchResult) {
		dispatched <- result
	})

	a, err := svc.Create(context.Background(), validInput(uuid.New(), clock(t, "09:00")))
	if err != nil {
		t.Fatalf("create must not fail on notification errors: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), a.ID); err != nil {
		t.Errorf("appointment not persisted: %v", err)
	}
	result := waitDispatch(t, dispatched)
	if result.EmailErr == nil {
		t.Error("dispatch failure not reported through the side channel")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())
	_, err := svc.Update(context.Background(), uuid.New(), Patch{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_RescheduleChecksOverlap(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())
	doctorID := uuid.New()

	if _, err := svc.Create(context.Background(), validInput(doctorID, clock(t, "09:00"))); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := svc.Create(context.Background(), validInput(doctorID, clock(t, "11:00")))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	moveTo := clock(t, "09:15")
	_, err = svc.Update(context.Background(), second.ID, Patch{Time: &moveTo})
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestUpdate_RescheduleExcludesSelf(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())
	doctorID := uuid.New()

	a, err := svc.Create(context.Background(), validInput(doctorID, clock(t, "09:00")))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Shifting within the original slot must not conflict with itself.
	moveTo := clock(t, "09:10")
	updated, err := svc.Update(context.Background(), a.ID, Patch{Time: &moveTo})
	if err != nil {
		t.Fatalf("self-overlapping move rejected: %v", err)
	}
	if updated.Time != moveTo {
		t.Errorf("time not updated")
	}
	if !updated.UpdatedAt.After(a.UpdatedAt) {
		t.Errorf("updatedAt not refreshed")
	}
}

func TestUpdate_ConfirmNotifiesOnce(t *testing.T) {
	svc, notifier, dispatched := newTestService(newMockRepo())

	a, err := svc.Create(context.Background(), validInput(uuid.New(), clock(t, "09:00")))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	waitDispatch(t, dispatched)

	confirmed := StatusConfirmed
	if _, err := svc.Update(context.Background(), a.ID, Patch{Status: &confirmed}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	waitDispatch(t, dispatched)

	// Confirming again is a no-op transition and must stay silent.
	if _, err := svc.Update(context.Background(), a.ID, Patch{Status: &confirmed}); err != nil {
		t.Fatalf("re-confirm failed: %v", err)
	}
	select {
	case <-dispatched:
		t.Fatal("re-confirming an already-confirmed appointment must not notify")
	case <-time.After(100 * time.Millisecond):
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	confirmCount := 0
	for _, id := range notifier.sent {
		if id == notification.TemplateConfirmed {
			confirmCount++
		}
	}
	if confirmCount != 1 {
		t.Errorf("confirmation must be sent exactly once, got %d", confirmCount)
	}
}

func TestMove_Succeeds(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())

	a, err := svc.Create(context.Background(), validInput(uuid.New(), clock(t, "09:00")))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	moved, err := svc.Move(context.Background(), a.ID, "2024-03-16", clock(t, "14:00"))
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if moved.Date != "2024-03-16" || moved.Time != clock(t, "14:00") {
		t.Errorf("slot not moved: %s %s", moved.Date, moved.Time)
	}
	if moved.PatientName != a.PatientName {
		t.Errorf("move must keep patient details")
	}
}

func TestDelete(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())

	a, err := svc.Create(context.Background(), validInput(uuid.New(), clock(t, "09:00")))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.Delete(context.Background(), a.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.Delete(context.Background(), a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for double delete, got %v", err)
	}
}

func TestListByDate_ServedFromCacheUntilMutation(t *testing.T) {
	repo := newMockRepo()
	svc, _, _ := newTestService(repo)
	doctorID := uuid.New()

	if _, err := svc.Create(context.Background(), validInput(doctorID, clock(t, "09:00"))); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := svc.ListByDate(context.Background(), "2024-03-15", nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	repoReads := repo.calls["findByDate"]

	second, err := svc.ListByDate(context.Background(), "2024-03-15", nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if repo.calls["findByDate"] != repoReads {
		t.Error("second read within TTL must be served from cache")
	}
	if len(first) != len(second) {
		t.Error("cached result differs from stored result")
	}

	// Any mutation clears the cache, so the next read goes to the store.
	if _, err := svc.Create(context.Background(), validInput(doctorID, clock(t, "10:00"))); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	refreshed, err := svc.ListByDate(context.Background(), "2024-03-15", nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if repo.calls["findByDate"] != repoReads+1 {
		t.Error("read after mutation must hit the store")
	}
	if len(refreshed) != 2 {
		t.Errorf("expected 2 appointments after second create, got %d", len(refreshed))
	}
}

func TestListByDate_OrderedByStartTime(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())
	doctorID := uuid.New()

	for _, start := range []string{"15:00", "08:00", "11:30"} {
		if _, err := svc.Create(context.Background(), validInput(doctorID, clock(t, start))); err != nil {
			t.Fatalf("create %s failed: %v", start, err)
		}
	}
	items, err := svc.ListByDate(context.Background(), "2024-03-15", nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 appointments, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].Time > items[i].Time {
			t.Fatalf("appointments not ordered by start time: %v then %v", items[i-1].Time, items[i].Time)
		}
	}
}
