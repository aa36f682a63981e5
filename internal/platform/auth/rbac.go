package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks the caller holds one of the
// given roles. Admin passes every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			has := RoleFromContext(c.Request().Context())
			if has == RoleAdmin {
				return next(c)
			}
			for _, required := range roles {
				if has == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// Scope is the record-visibility boundary resolved from the caller's
// identity. It is applied as a precondition to every query the dashboard and
// listing endpoints run; handlers never let the caller widen it.
type Scope struct {
	Role      string
	CompanyID uuid.UUID // set for empresa callers
	DoctorID  uuid.UUID // set for profesional callers
}

// All reports whether the scope grants unrestricted visibility.
func (s Scope) All() bool { return s.Role == RoleAdmin }

// ScopeFromContext resolves the caller's scope from the identity claims.
// admin sees everything, empresa is bound to its company id, profesional to
// its own professional record id (the token subject).
func ScopeFromContext(ctx context.Context) (Scope, error) {
	role := RoleFromContext(ctx)
	switch role {
	case RoleAdmin:
		return Scope{Role: role}, nil
	case RoleCompany:
		companyID := CompanyIDFromContext(ctx)
		if companyID == uuid.Nil {
			return Scope{}, fmt.Errorf("empresa token missing company_id claim")
		}
		return Scope{Role: role, CompanyID: companyID}, nil
	case RoleProfessional:
		doctorID, err := uuid.Parse(UserIDFromContext(ctx))
		if err != nil {
			return Scope{}, fmt.Errorf("profesional token subject is not a professional id: %w", err)
		}
		return Scope{Role: role, DoctorID: doctorID}, nil
	default:
		return Scope{}, fmt.Errorf("unknown role %q", role)
	}
}
