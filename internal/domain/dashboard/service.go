// Package dashboard aggregates role-scoped appointment counts for the
// landing views. It only reads; all writes happen in the owning domains.
package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/citamed/citamed/internal/domain/appointment"
	"github.com/citamed/citamed/internal/domain/professional"
	"github.com/citamed/citamed/internal/platform/auth"
	"github.com/citamed/citamed/internal/platform/cache"
	"github.com/citamed/citamed/pkg/timeslot"
)

const recentCount = 5

// Stats is the dashboard payload. Roster is omitted for profesional
// callers, who only see their own schedule.
type Stats struct {
	TotalAppointments int                        `json:"totalAppointments"`
	Today             int                        `json:"today"`
	ThisWeek          int                        `json:"thisWeek"`
	ThisMonth         int                        `json:"thisMonth"`
	ByStatus          map[string]int             `json:"byStatus"`
	Recent            []*appointment.Appointment `json:"recent"`
	Roster            *RosterStats               `json:"roster,omitempty"`
}

// RosterStats summarizes the professional roster in scope.
type RosterStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

type Service struct {
	appts  appointment.Repository
	roster professional.Repository
	cache  cache.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(appts appointment.Repository, roster professional.Repository, store cache.Store, logger zerolog.Logger) *Service {
	return &Service{
		appts:  appts,
		roster: roster,
		cache:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Stats computes the dashboard for the caller's scope. The independent
// counts run as parallel queries; the first failure cancels the rest.
func (s *Service) Stats(ctx context.Context, scope auth.Scope) (*Stats, error) {
	key := statsCacheKey(scope)
	if v, ok := s.cache.Get(key); ok {
		return v.(*Stats), nil
	}

	base := s.scopeFilter(scope)
	today := timeslot.DateOf(s.now())
	weekFrom, weekTo := weekRange(s.now())
	monthFrom, monthTo := monthRange(s.now())

	stats := &Stats{ByStatus: make(map[string]int)}
	statuses := []appointment.Status{
		appointment.StatusPending,
		appointment.StatusConfirmed,
		appointment.StatusCancelled,
		appointment.StatusCompleted,
	}
	statusCounts := make([]int, len(statuses))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats.TotalAppointments, err = s.appts.CountByFilter(gctx, base)
		return err
	})
	g.Go(func() error {
		f := base
		f.Date = &today
		var err error
		stats.Today, err = s.appts.CountByFilter(gctx, f)
		return err
	})
	g.Go(func() error {
		f := base
		f.DateFrom, f.DateTo = &weekFrom, &weekTo
		var err error
		stats.ThisWeek, err = s.appts.CountByFilter(gctx, f)
		return err
	})
	g.Go(func() error {
		f := base
		f.DateFrom, f.DateTo = &monthFrom, &monthTo
		var err error
		stats.ThisMonth, err = s.appts.CountByFilter(gctx, f)
		return err
	})
	for i := range statuses {
		i := i
		g.Go(func() error {
			f := base
			f.Status = &statuses[i]
			var err error
			statusCounts[i], err = s.appts.CountByFilter(gctx, f)
			return err
		})
	}
	g.Go(func() error {
		var err error
		stats.Recent, err = s.appts.FindRecent(gctx, base, recentCount)
		return err
	})
	if scope.Role != auth.RoleProfessional {
		roster := &RosterStats{}
		stats.Roster = roster
		rosterFilter := professional.Filter{}
		if scope.Role == auth.RoleCompany {
			companyID := scope.CompanyID
			rosterFilter.CompanyID = &companyID
		}
		g.Go(func() error {
			var err error
			roster.Total, err = s.roster.Count(gctx, rosterFilter)
			return err
		})
		g.Go(func() error {
			f := rosterFilter
			active := professional.StatusActive
			f.Status = &active
			var err error
			roster.Active, err = s.roster.Count(gctx, f)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if stats.Roster != nil {
		stats.Roster.Inactive = stats.Roster.Total - stats.Roster.Active
	}
	for i, status := range statuses {
		stats.ByStatus[string(status)] = statusCounts[i]
	}

	s.cache.Set(key, stats, cache.TTLShort)
	return stats, nil
}

// scopeFilter turns the caller's scope into the query precondition every
// count runs under. Handlers never widen it.
func (s *Service) scopeFilter(scope auth.Scope) appointment.Filter {
	f := appointment.Filter{}
	switch scope.Role {
	case auth.RoleCompany:
		companyID := scope.CompanyID
		f.CompanyID = &companyID
	case auth.RoleProfessional:
		doctorID := scope.DoctorID
		f.DoctorID = &doctorID
	}
	return f
}

func statsCacheKey(scope auth.Scope) string {
	switch scope.Role {
	case auth.RoleCompany:
		return cache.Key("dashboard", "company", scope.CompanyID.String())
	case auth.RoleProfessional:
		return cache.Key("dashboard", "professional", scope.DoctorID.String())
	default:
		return cache.Key("dashboard", "admin")
	}
}

// weekRange returns the Monday-to-Sunday range containing t.
func weekRange(t time.Time) (from, to timeslot.Date) {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := t.AddDate(0, 0, -(weekday - 1))
	return timeslot.DateOf(monday), timeslot.DateOf(monday.AddDate(0, 0, 6))
}

func monthRange(t time.Time) (from, to timeslot.Date) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return timeslot.DateOf(first), timeslot.DateOf(first.AddDate(0, 1, -1))
}
