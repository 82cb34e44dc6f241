package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireStaff gates admin routes on the staff capability claim. The
// claim is a plain boolean carried from the user record; there is no
// role hierarchy.
func RequireStaff() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !StaffFromContext(c) {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}
