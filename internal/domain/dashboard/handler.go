package dashboard

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/citamed/citamed/internal/platform/auth"
	"github.com/citamed/citamed/internal/platform/db"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleCompany, auth.RoleProfessional))
	g.GET("/dashboard/stats", h.Stats)
}

func (h *Handler) Stats(c echo.Context) error {
	scope, err := auth.ScopeFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}

	stats, err := h.svc.Stats(c.Request().Context(), scope)
	if err != nil {
		var serr *db.StorageError
		if errors.As(err, &serr) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
