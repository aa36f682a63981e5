package appointment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/citamed/citamed/internal/platform/auth"
	"github.com/citamed/citamed/internal/platform/db"
	"github.com/citamed/citamed/internal/platform/lock"
	"github.com/citamed/citamed/pkg/pagination"
	"github.com/citamed/citamed/pkg/timeslot"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleCompany, auth.RoleProfessional))
	g.GET("/appointments", h.List)
	g.GET("/appointments/:id", h.Get)
	g.POST("/appointments", h.Create)
	g.PUT("/appointments/:id", h.Update)
	g.PUT("/appointments/:id/move", h.Move)
	g.DELETE("/appointments/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	scope, err := auth.ScopeFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	if scope.Role == auth.RoleCompany {
		in.CompanyID = scope.CompanyID
	}

	a, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	if err := checkVisibility(c, a); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// List serves the calendar views. With a date parameter it returns the day's
// appointments in start-time order; with professionalId plus from/to it
// returns that calendar range; otherwise it pages through the caller's
// appointments, newest first. The caller's scope always narrows the result.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := auth.ScopeFromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}

	if raw := c.QueryParam("date"); raw != "" && scope.Role != auth.RoleProfessional {
		date, err := timeslot.ParseDate(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		var companyID *uuid.UUID
		if scope.Role == auth.RoleCompany {
			companyID = &scope.CompanyID
		}
		items, err := h.svc.ListByDate(ctx, date, companyID)
		if err != nil {
			return domainError(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
	}

	doctorID := scope.DoctorID
	if scope.Role != auth.RoleProfessional {
		if raw := c.QueryParam("professionalId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid professionalId")
			}
			doctorID = id
		}
	}
	if doctorID != uuid.Nil {
		from, to, err := dateRange(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		items, err := h.svc.ListByProfessional(ctx, doctorID, from, to)
		if err != nil {
			return domainError(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
	}

	f := Filter{}
	if scope.Role == auth.RoleCompany {
		f.CompanyID = &scope.CompanyID
	}
	if raw := c.QueryParam("status"); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		f.Status = &status
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(ctx, f, p.Limit, p.Offset())
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.authorizeMutation(c, id); err != nil {
		return err
	}
	a, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Move(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Date timeslot.Date       `json:"date"`
		Time *timeslot.ClockTime `json:"time"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.Date.IsZero() || body.Time == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date and time are required")
	}
	if err := h.authorizeMutation(c, id); err != nil {
		return err
	}
	a, err := h.svc.Move(c.Request().Context(), id, body.Date, *body.Time)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.authorizeMutation(c, id); err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// authorizeMutation checks the target appointment is inside the caller's
// scope before a write touches it.
func (h *Handler) authorizeMutation(c echo.Context, id uuid.UUID) error {
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	return checkVisibility(c, a)
}

func checkVisibility(c echo.Context, a *Appointment) error {
	scope, err := auth.ScopeFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	switch scope.Role {
	case auth.RoleCompany:
		if a.CompanyID != scope.CompanyID {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
	case auth.RoleProfessional:
		if a.DoctorID != scope.DoctorID {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
	}
	return nil
}

func dateRange(c echo.Context) (from, to timeslot.Date, err error) {
	from = timeslot.Today()
	to = from.AddDays(30)
	if raw := c.QueryParam("from"); raw != "" {
		if from, err = timeslot.ParseDate(raw); err != nil {
			return "", "", err
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		if to, err = timeslot.ParseDate(raw); err != nil {
			return "", "", err
		}
	}
	return from, to, nil
}

// domainError maps the service error taxonomy onto HTTP statuses.
func domainError(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"error":         verr.Error(),
			"missingFields": verr.MissingFields,
		})
	}
	var cerr *ConflictError
	if errors.As(err, &cerr) {
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"error":         cerr.Error(),
			"conflictingId": cerr.ConflictingID,
			"date":          cerr.Date,
			"time":          cerr.Time,
			"duration":      cerr.DurationMin,
		})
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	if errors.Is(err, lock.ErrNotAcquired) {
		return echo.NewHTTPError(http.StatusConflict, "slot is being booked, retry shortly")
	}
	var serr *db.StorageError
	if errors.As(err, &serr) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
