package professional

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/citamed/citamed/internal/platform/auth"
	"github.com/citamed/citamed/internal/platform/db"
	"github.com/citamed/citamed/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleCompany, auth.RoleProfessional))
	read.GET("/professionals", h.List)
	read.GET("/professionals/:id", h.Get)

	write := api.Group("", auth.RequireRole(auth.RoleCompany))
	write.POST("/professionals", h.Onboard)
	write.POST("/professionals/bulk", h.OnboardBulk)
	write.PUT("/professionals/:id", h.Update)
	write.PUT("/professionals/:id/deactivate", h.Deactivate)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/professionals/:id", h.Delete)
}

func (h *Handler) Onboard(c echo.Context) error {
	var in OnboardInput
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

	p, creds, err := h.svc.Onboard(c.Request().Context(), in)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"professional": p,
		"credentials":  creds,
	})
}

func (h *Handler) OnboardBulk(c echo.Context) error {
	var inputs []OnboardInput
	if err := c.Bind(&inputs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	scope, err := auth.ScopeFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	if scope.Role == auth.RoleCompany {
		for i := range inputs {
			inputs[i].CompanyID = scope.CompanyID
		}
	}

	results := h.svc.OnboardBulk(c.Request().Context(), inputs)
	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	if err := h.checkVisibility(c, p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := auth.ScopeFromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}

	f := Filter{}
	switch scope.Role {
	case auth.RoleCompany:
		f.CompanyID = &scope.CompanyID
	case auth.RoleProfessional:
		companyID, err := h.callerCompany(ctx, scope)
		if err != nil {
			return domainError(err)
		}
		f.CompanyID = &companyID
	}
	if raw := c.QueryParam("status"); raw != "" {
		status := Status(raw)
		f.Status = &status
	}
	if raw := c.QueryParam("specialty"); raw != "" {
		f.Specialty = &raw
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
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.authorizeMutation(c, id); err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.authorizeMutation(c, id); err != nil {
		return err
	}
	p, err := h.svc.Deactivate(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) authorizeMutation(c echo.Context, id uuid.UUID) error {
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	return h.checkVisibility(c, p)
}

// callerCompany resolves a profesional caller's own company from their roster
// record. Their roster view is bounded by it, same as an empresa caller's.
func (h *Handler) callerCompany(ctx context.Context, scope auth.Scope) (uuid.UUID, error) {
	self, err := h.svc.Get(ctx, scope.DoctorID)
	if err != nil {
		return uuid.Nil, err
	}
	return self.CompanyID, nil
}

func (h *Handler) checkVisibility(c echo.Context, p *Professional) error {
	ctx := c.Request().Context()
	scope, err := auth.ScopeFromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	switch scope.Role {
	case auth.RoleCompany:
		if p.CompanyID != scope.CompanyID {
			return echo.NewHTTPError(http.StatusNotFound, "professional not found")
		}
	case auth.RoleProfessional:
		if p.ID == scope.DoctorID {
			return nil
		}
		companyID, err := h.callerCompany(ctx, scope)
		if err != nil {
			return domainError(err)
		}
		if p.CompanyID != companyID {
			return echo.NewHTTPError(http.StatusNotFound, "professional not found")
		}
	}
	return nil
}

func domainError(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"error":         verr.Error(),
			"missingFields": verr.MissingFields,
		})
	}
	if errors.Is(err, ErrEmailTaken) {
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "professional not found")
	}
	var serr *db.StorageError
	if errors.As(err, &serr) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
