package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/citamed/citamed/internal/platform/cache"
	"github.com/citamed/citamed/internal/platform/lock"
	"github.com/citamed/citamed/internal/platform/notification"
	"github.com/citamed/citamed/pkg/timeslot"
)

// Notifier sends patient notifications. Failures come back in the result,
// never as an error.
type Notifier interface {
	Notify(ctx context.Context, templateID string, rcpt notification.Recipient) notification.DispatchResult
}

const dispatchTimeout = 30 * time.Second

// Service implements the scheduling operations. Every mutation invalidates
// the whole cache; overlap checks run under the professional's lock so two
// concurrent bookings cannot both pass.
type Service struct {
	repo     Repository
	cache    cache.Store
	locker   lock.Locker
	notifier Notifier
	logger   zerolog.Logger

	storeTimeout time.Duration
	dispatchHook func(id uuid.UUID, result notification.DispatchResult)
}

func NewService(repo Repository, store cache.Store, locker lock.Locker, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		cache:        store,
		locker:       locker,
		notifier:     notifier,
		logger:       logger,
		storeTimeout: 5 * time.Second,
	}
}

// SetStoreTimeout overrides the per-query deadline applied to repository
// calls.
func (s *Service) SetStoreTimeout(d time.Duration) { s.storeTimeout = d }

// OnDispatch registers a hook observing the outcome of each asynchronous
// notification dispatch.
func (s *Service) OnDispatch(fn func(id uuid.UUID, result notification.DispatchResult)) {
	s.dispatchHook = fn
}

// CreateInput is a create request. Time is a pointer so an absent time can
// be told apart from midnight.
type CreateInput struct {
	PatientName  string              `json:"patientName"`
	PatientEmail string              `json:"patientEmail"`
	PatientPhone string              `json:"patientPhone"`
	DoctorID     uuid.UUID           `json:"doctorId"`
	DoctorName   string              `json:"doctorName"`
	Specialty    string              `json:"specialty"`
	Date         timeslot.Date       `json:"date"`
	Time         *timeslot.ClockTime `json:"time"`
	DurationMin  int                 `json:"duration"`
	Type         string              `json:"type"`
	Status       Status              `json:"status"`
	CompanyID    uuid.UUID           `json:"companyId"`
	Notes        string              `json:"notes"`
	Location     string              `json:"location"`
}

func (in CreateInput) validate() error {
	verr := &ValidationError{}
	if in.PatientName == "" {
		verr.MissingFields = append(verr.MissingFields, "patientName")
	}
	if in.PatientEmail == "" {
		verr.MissingFields = append(verr.MissingFields, "patientEmail")
	}
	if in.DoctorName == "" {
		verr.MissingFields = append(verr.MissingFields, "doctorName")
	}
	if in.Date.IsZero() {
		verr.MissingFields = append(verr.MissingFields, "date")
	}
	if in.Time == nil {
		verr.MissingFields = append(verr.MissingFields, "time")
	}
	if in.Specialty == "" {
		verr.MissingFields = append(verr.MissingFields, "specialty")
	}
	if in.Status != "" && !in.Status.Valid() {
		verr.InvalidFields = append(verr.InvalidFields, "status")
	}
	if len(verr.MissingFields) > 0 || len(verr.InvalidFields) > 0 {
		return verr
	}
	return nil
}

// Create books a new appointment. Missing required fields fail with a
// ValidationError naming all of them; a slot collision with another
// non-cancelled appointment of the same professional fails with a
// ConflictError. On success the patient is notified asynchronously.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := &Appointment{
		ID:           uuid.New(),
		Date:         in.Date,
		Time:         *in.Time,
		DurationMin:  in.DurationMin,
		PatientName:  in.PatientName,
		PatientEmail: in.PatientEmail,
		PatientPhone: in.PatientPhone,
		DoctorID:     in.DoctorID,
		DoctorName:   in.DoctorName,
		Specialty:    in.Specialty,
		Type:         in.Type,
		Status:       in.Status,
		CompanyID:    in.CompanyID,
		Notes:        in.Notes,
		Location:     in.Location,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if a.DurationMin <= 0 {
		a.DurationMin = timeslot.DefaultDurationMin
	}
	if a.Type == "" {
		a.Type = DefaultType
	}
	if a.Status == "" {
		a.Status = StatusPending
	}

	err := s.locker.WithProfessionalLock(ctx, lockKey(a), func(ctx context.Context) error {
		if err := s.ensureFree(ctx, a, uuid.Nil); err != nil {
			return err
		}
		return s.store(ctx, func(ctx context.Context) error {
			return s.repo.Insert(ctx, a)
		})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Clear()
	s.dispatchAsync(notification.TemplateCreated, a)
	return a, nil
}

// Update applies a partial update. Changes to the slot coordinates re-run
// the overlap check under the professional's lock. The confirmation
// notification goes out only on the transition into confirmed; re-confirming
// an already-confirmed appointment stays silent.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Appointment, error) {
	var existing *Appointment
	err := s.store(ctx, func(ctx context.Context) error {
		var err error
		existing, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	updated := *existing
	patch.Apply(&updated)
	updated.UpdatedAt = time.Now().UTC()

	if err := validateRecord(&updated); err != nil {
		return nil, err
	}

	persist := func(ctx context.Context) error {
		return s.store(ctx, func(ctx context.Context) error {
			return s.repo.Update(ctx, &updated)
		})
	}
	if patch.Reschedules() {
		err = s.locker.WithProfessionalLock(ctx, lockKey(&updated), func(ctx context.Context) error {
			if err := s.ensureFree(ctx, &updated, updated.ID); err != nil {
				return err
			}
			return persist(ctx)
		})
	} else {
		err = persist(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Clear()
	if patch.Status != nil && *patch.Status == StatusConfirmed && existing.Status != StatusConfirmed {
		s.dispatchAsync(notification.TemplateConfirmed, &updated)
	}
	return &updated, nil
}

// Move reschedules an appointment to a new date and time, keeping everything
// else. Same conflict rules as Update.
func (s *Service) Move(ctx context.Context, id uuid.UUID, date timeslot.Date, t timeslot.ClockTime) (*Appointment, error) {
	return s.Update(ctx, id, Patch{Date: &date, Time: &t})
}

// Delete removes an appointment. Returns ErrNotFound for unknown ids.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.cache.Clear()
	return nil
}

// Get fetches a single appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a *Appointment
	err := s.store(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetByID(ctx, id)
		return err
	})
	return a, err
}

// ListByDate returns a day's appointments ordered by start time, serving
// repeated reads from cache until the next mutation or TTL expiry.
func (s *Service) ListByDate(ctx context.Context, date timeslot.Date, companyID *uuid.UUID) ([]*Appointment, error) {
	key := cache.Key("appointments", "date", string(date))
	if companyID != nil {
		key = cache.Key(key, companyID.String())
	}
	if v, ok := s.cache.Get(key); ok {
		return v.([]*Appointment), nil
	}

	var items []*Appointment
	err := s.store(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.FindByDate(ctx, date, companyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, items, cache.TTLShort)
	return items, nil
}

// ListByProfessional returns a professional's appointments in the inclusive
// date range, cached like ListByDate.
func (s *Service) ListByProfessional(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date) ([]*Appointment, error) {
	key := cache.Key("appointments", "professional", doctorID.String(), string(from), string(to))
	if v, ok := s.cache.Get(key); ok {
		return v.([]*Appointment), nil
	}

	var items []*Appointment
	err := s.store(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.FindByProfessional(ctx, doctorID, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, items, cache.TTLShort)
	return items, nil
}

// List pages through appointments matching the filter, newest slots first.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	var (
		items []*Appointment
		total int
	)
	err := s.store(ctx, func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.FindByFilter(ctx, f, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// validateRecord re-checks the required fields after a patch, so an update
// cannot blank out what a create must supply.
func validateRecord(a *Appointment) error {
	verr := &ValidationError{}
	if a.PatientName == "" {
		verr.MissingFields = append(verr.MissingFields, "patientName")
	}
	if a.PatientEmail == "" {
		verr.MissingFields = append(verr.MissingFields, "patientEmail")
	}
	if a.DoctorName == "" {
		verr.MissingFields = append(verr.MissingFields, "doctorName")
	}
	if a.Date.IsZero() {
		verr.MissingFields = append(verr.MissingFields, "date")
	}
	if a.Specialty == "" {
		verr.MissingFields = append(verr.MissingFields, "specialty")
	}
	if !a.Status.Valid() {
		verr.InvalidFields = append(verr.InvalidFields, "status")
	}
	if len(verr.MissingFields) > 0 || len(verr.InvalidFields) > 0 {
		return verr
	}
	return nil
}

// lockKey identifies the professional whose calendar is being mutated. When
// no professional id was assigned, the lock falls back to a stable key
// derived from the name so unassigned bookings still serialize.
func lockKey(a *Appointment) uuid.UUID {
	if a.DoctorID != uuid.Nil {
		return a.DoctorID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(a.DoctorName))
}

// ensureFree fails with a ConflictError if any non-cancelled appointment of
// the same professional overlaps a's slot. excludeID skips the appointment
// being rescheduled.
func (s *Service) ensureFree(ctx context.Context, a *Appointment, excludeID uuid.UUID) error {
	var candidates []*Appointment
	err := s.store(ctx, func(ctx context.Context) error {
		var err error
		if a.DoctorID != uuid.Nil {
			candidates, err = s.repo.FindByProfessional(ctx, a.DoctorID, a.Date, a.Date)
		} else {
			candidates, err = s.repo.FindByDate(ctx, a.Date, nil)
		}
		return err
	})
	if err != nil {
		return err
	}

	if !a.Status.Blocking() {
		return nil
	}
	for _, existing := range candidates {
		if existing.ID == excludeID || existing.Date != a.Date {
			continue
		}
		if a.DoctorID == uuid.Nil && existing.DoctorName != a.DoctorName {
			continue
		}
		if !existing.Status.Blocking() {
			continue
		}
		if existing.Interval().Overlaps(a.Interval()) {
			return conflictWith(existing)
		}
	}
	return nil
}

// store runs fn with the per-query deadline applied.
func (s *Service) store(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Service) dispatchAsync(templateID string, a *Appointment) {
	rcpt := notification.Recipient{
		PatientName:  a.PatientName,
		PatientEmail: a.PatientEmail,
		PatientPhone: a.PatientPhone,
		DoctorName:   a.DoctorName,
		Specialty:    a.Specialty,
		Date:         a.Date.String(),
		Time:         a.Time.String(),
	}
	id := a.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		var result notification.DispatchResult
		if s.notifier != nil {
			result = s.notifier.Notify(ctx, templateID, rcpt)
		}
		if result.Failed() {
			s.logger.Warn().
				Str("appointment_id", id.String()).
				Str("template", templateID).
				Msg("notification dispatch failed")
		}
		if s.dispatchHook != nil {
			s.dispatchHook(id, result)
		}
	}()
}
