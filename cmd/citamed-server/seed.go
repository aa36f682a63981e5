package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/citamed/citamed/internal/domain/appointment"
	"github.com/citamed/citamed/internal/domain/company"
	"github.com/citamed/citamed/internal/domain/professional"
	"github.com/citamed/citamed/pkg/timeslot"
)

var seedSpecialties = []string{
	"Cardiología", "Dermatología", "Pediatría", "Traumatología",
	"Medicina General", "Oftalmología", "Psiquiatría",
}

var seedStatuses = []appointment.Status{
	appointment.StatusPending,
	appointment.StatusConfirmed,
	appointment.StatusCompleted,
	appointment.StatusCancelled,
}

// runSeed fills the database with fake but coherent demo data: companies,
// each with a roster of professionals, and appointments laid out on
// non-overlapping half-hour slots starting tomorrow.
func runSeed(ctx context.Context, pool *pgxpool.Pool, companies, perCompany, appts int) error {
	faker := gofakeit.New(0)

	companyRepo := company.NewRepoPG(pool)
	profRepo := professional.NewRepoPG(pool)
	apptRepo := appointment.NewRepoPG(pool)

	// Every seeded professional shares one demo credential.
	hash, err := bcrypt.GenerateFromPassword([]byte("citamed-demo"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now()
	created := 0

	for ci := 0; ci < companies; ci++ {
		co := &company.Company{
			ID:        uuid.New(),
			Name:      faker.Company(),
			Email:     faker.Email(),
			Phone:     faker.Phone(),
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := companyRepo.Insert(ctx, co); err != nil {
			return fmt.Errorf("seed company: %w", err)
		}

		roster := make([]*professional.Professional, 0, perCompany)
		for pi := 0; pi < perCompany; pi++ {
			email := faker.Email()
			p := &professional.Professional{
				ID:           uuid.New(),
				Name:         "Dr. " + faker.Name(),
				Email:        email,
				Phone:        faker.Phone(),
				Specialty:    seedSpecialties[(ci*perCompany+pi)%len(seedSpecialties)],
				CompanyID:    co.ID,
				WeeklyHours:  professional.DefaultWeeklyHours,
				Status:       professional.StatusActive,
				Username:     strings.SplitN(email, "@", 2)[0],
				PasswordHash: string(hash),
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := profRepo.Insert(ctx, p); err != nil {
				return fmt.Errorf("seed professional: %w", err)
			}
			roster = append(roster, p)
		}

		// Walk each professional's calendar forward in half-hour steps so
		// the seed never trips the overlap rule.
		const (
			dayStart    = 9 * 60
			dayEnd      = 17 * 60
			slotMinutes = timeslot.DefaultDurationMin
		)
		for ai := 0; ai < appts; ai++ {
			doc := roster[ai%len(roster)]
			slot := ai / len(roster)
			slotsPerDay := (dayEnd - dayStart) / slotMinutes
			day := 1 + slot/slotsPerDay
			minute := dayStart + (slot%slotsPerDay)*slotMinutes

			a := &appointment.Appointment{
				ID:           uuid.New(),
				Date:         timeslot.DateOf(now.AddDate(0, 0, day)),
				Time:         timeslot.ClockTime(minute),
				DurationMin:  slotMinutes,
				PatientName:  faker.Name(),
				PatientEmail: faker.Email(),
				PatientPhone: faker.Phone(),
				DoctorID:     doc.ID,
				DoctorName:   doc.Name,
				Specialty:    doc.Specialty,
				Type:         appointment.DefaultType,
				Status:       seedStatuses[ai%len(seedStatuses)],
				CompanyID:    co.ID,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := apptRepo.Insert(ctx, a); err != nil {
				return fmt.Errorf("seed appointment: %w", err)
			}
			created++
		}
	}

	fmt.Printf("Seeded %d companies, %d professionals, %d appointments.\n",
		companies, companies*perCompany, created)
	return nil
}
