package dashboard

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/citamed/citamed/internal/domain/appointment"
	"github.com/citamed/citamed/internal/domain/professional"
	"github.com/citamed/citamed/internal/platform/auth"
	"github.com/citamed/citamed/internal/platform/cache"
	"github.com/citamed/citamed/pkg/timeslot"
)

type apptRepoStub struct {
	mu    sync.Mutex
	items []*appointment.Appointment
	err   error
	calls int
}

func (r *apptRepoStub) matches(a *appointment.Appointment, f appointment.Filter) bool {
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

func (r *apptRepoStub) CountByFilter(_ context.Context, f appointment.Filter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	count := 0
	for _, a := range r.items {
		if r.matches(a, f) {
			count++
		}
	}
	return count, nil
}

func (r *apptRepoStub) FindRecent(_ context.Context, f appointment.Filter, n int) ([]*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var items []*appointment.Appointment
	for _, a := range r.items {
		if r.matches(a, f) {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if len(items) > n {
		items = items[:n]
	}
	return items, nil
}

// The dashboard only reads; the write half of the repository is unused.
func (r *apptRepoStub) Insert(context.Context, *appointment.Appointment) error { return nil }
func (r *apptRepoStub) GetByID(context.Context, uuid.UUID) (*appointment.Appointment, error) {
	return nil, appointment.ErrNotFound
}
func (r *apptRepoStub) Update(context.Context, *appointment.Appointment) error { return nil }
func (r *apptRepoStub) Delete(context.Context, uuid.UUID) error                { return nil }
func (r *apptRepoStub) FindByDate(context.Context, timeslot.Date, *uuid.UUID) ([]*appointment.Appointment, error) {
	return nil, nil
}
func (r *apptRepoStub) FindByProfessional(context.Context, uuid.UUID, timeslot.Date, timeslot.Date) ([]*appointment.Appointment, error) {
	return nil, nil
}
func (r *apptRepoStub) FindByFilter(context.Context, appointment.Filter, int, int) ([]*appointment.Appointment, int, error) {
	return nil, 0, nil
}

type rosterRepoStub struct {
	items []*professional.Professional
}

func (r *rosterRepoStub) Count(_ context.Context, f professional.Filter) (int, error) {
	count := 0
	for _, p := range r.items {
		if f.CompanyID != nil && p.CompanyID != *f.CompanyID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		count++
	}
	return count, nil
}

func (r *rosterRepoStub) Insert(context.Context, *professional.Professional) error { return nil }
func (r *rosterRepoStub) GetByID(context.Context, uuid.UUID) (*professional.Professional, error) {
	return nil, professional.ErrNotFound
}
func (r *rosterRepoStub) GetByEmail(context.Context, string) (*professional.Professional, error) {
	return nil, professional.ErrNotFound
}
func (r *rosterRepoStub) Update(context.Context, *professional.Professional) error { return nil }
func (r *rosterRepoStub) Delete(context.Context, uuid.UUID) error                  { return nil }
func (r *rosterRepoStub) List(context.Context, professional.Filter, int, int) ([]*professional.Professional, int, error) {
	return nil, 0, nil
}
func (r *rosterRepoStub) SetMonthlyHours(context.Context, uuid.UUID, float64) error { return nil }

// Wednesday 2024-03-13; its week is 03-11 to 03-17, its month March.
var testNow = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

func appt(companyID, doctorID uuid.UUID, date timeslot.Date, status appointment.Status, createdAt time.Time) *appointment.Appointment {
	return &appointment.Appointment{
		ID:        uuid.New(),
		Date:      date,
		CompanyID: companyID,
		DoctorID:  doctorID,
		Status:    status,
		CreatedAt: createdAt,
	}
}

func newTestService(appts *apptRepoStub, roster *rosterRepoStub) *Service {
	svc := NewService(appts, roster, cache.NewInMemoryStore(), zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestStats_AdminSeesEverything(t *testing.T) {
	companyA, companyB := uuid.New(), uuid.New()
	doctor := uuid.New()
	appts := &apptRepoStub{items: []*appointment.Appointment{
		appt(companyA, doctor, "2024-03-13", appointment.StatusPending, testNow),
		appt(companyA, doctor, "2024-03-15", appointment.StatusConfirmed, testNow.Add(-time.Hour)),
		appt(companyB, doctor, "2024-02-01", appointment.StatusCancelled, testNow.Add(-2*time.Hour)),
		appt(companyB, doctor, "2024-03-30", appointment.StatusCompleted, testNow.Add(-3*time.Hour)),
	}}
	roster := &rosterRepoStub{items: []*professional.Professional{
		{ID: doctor, CompanyID: companyA, Status: professional.StatusActive},
		{ID: uuid.New(), CompanyID: companyB, Status: professional.StatusInactive},
	}}

	stats, err := newTestService(appts, roster).Stats(context.Background(), auth.Scope{Role: auth.RoleAdmin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalAppointments != 4 {
		t.Errorf("total = %d, want 4", stats.TotalAppointments)
	}
	if stats.Today != 1 {
		t.Errorf("today = %d, want 1", stats.Today)
	}
	if stats.ThisWeek != 2 {
		t.Errorf("thisWeek = %d, want 2", stats.ThisWeek)
	}
	if stats.ThisMonth != 3 {
		t.Errorf("thisMonth = %d, want 3", stats.ThisMonth)
	}
	if stats.ByStatus["pending"] != 1 || stats.ByStatus["cancelled"] != 1 {
		t.Errorf("status breakdown wrong: %v", stats.ByStatus)
	}
	if len(stats.Recent) != 4 {
		t.Errorf("recent = %d, want 4", len(stats.Recent))
	}
	if stats.Recent[0].CreatedAt != testNow {
		t.Error("recent not ordered newest first")
	}
	if stats.Roster == nil || stats.Roster.Total != 2 || stats.Roster.Active != 1 || stats.Roster.Inactive != 1 {
		t.Errorf("roster stats wrong: %+v", stats.Roster)
	}
}

func TestStats_CompanyScoped(t *testing.T) {
	mine, other := uuid.New(), uuid.New()
	doctor := uuid.New()
	appts := &apptRepoStub{items: []*appointment.Appointment{
		appt(mine, doctor, "2024-03-13", appointment.StatusPending, testNow),
		appt(other, doctor, "2024-03-13", appointment.StatusPending, testNow),
	}}
	roster := &rosterRepoStub{items: []*professional.Professional{
		{ID: doctor, CompanyID: mine, Status: professional.StatusActive},
		{ID: uuid.New(), CompanyID: other, Status: professional.StatusActive},
	}}

	stats, err := newTestService(appts, roster).Stats(context.Background(),
		auth.Scope{Role: auth.RoleCompany, CompanyID: mine})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalAppointments != 1 {
		t.Errorf("company must only count its own appointments, got %d", stats.TotalAppointments)
	}
	if stats.Roster == nil || stats.Roster.Total != 1 {
		t.Errorf("company roster must be scoped: %+v", stats.Roster)
	}
}

func TestStats_ProfessionalScopedWithoutRoster(t *testing.T) {
	me, colleague := uuid.New(), uuid.New()
	company := uuid.New()
	appts := &apptRepoStub{items: []*appointment.Appointment{
		appt(company, me, "2024-03-13", appointment.StatusPending, testNow),
		appt(company, colleague, "2024-03-13", appointment.StatusPending, testNow),
	}}

	stats, err := newTestService(appts, &rosterRepoStub{}).Stats(context.Background(),
		auth.Scope{Role: auth.RoleProfessional, DoctorID: me})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalAppointments != 1 {
		t.Errorf("professional must only count their own appointments, got %d", stats.TotalAppointments)
	}
	if stats.Roster != nil {
		t.Error("professional dashboard must not include roster stats")
	}
}

func TestStats_CachedPerScope(t *testing.T) {
	appts := &apptRepoStub{}
	svc := newTestService(appts, &rosterRepoStub{})

	if _, err := svc.Stats(context.Background(), auth.Scope{Role: auth.RoleAdmin}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := appts.calls
	if _, err := svc.Stats(context.Background(), auth.Scope{Role: auth.RoleAdmin}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appts.calls != calls {
		t.Error("repeat dashboard read must be served from cache")
	}

	// A different scope must not see the cached admin payload.
	doctorID := uuid.New()
	if _, err := svc.Stats(context.Background(), auth.Scope{Role: auth.RoleProfessional, DoctorID: doctorID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appts.calls == calls {
		t.Error("professional scope must compute its own stats")
	}
}

func TestStats_CountFailurePropagates(t *testing.T) {
	appts := &apptRepoStub{err: errors.New("connection refused")}
	if _, err := newTestService(appts, &rosterRepoStub{}).Stats(context.Background(), auth.Scope{Role: auth.RoleAdmin}); err == nil {
		t.Error("expected error when a count query fails")
	}
}
