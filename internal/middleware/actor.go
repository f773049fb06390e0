package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys populated by ActorContext
const (
	ContextActorID  = "actorID"
	ContextSchoolID = "schoolID"
)

// ActorContext extracts the caller identity the platform gateway forwards in
// headers. X-School-ID scopes every query; X-Actor-ID is recorded on ledger
// writes for audit. Authentication itself happens upstream.
func ActorContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			schoolHeader := c.Request().Header.Get("X-School-ID")
			if schoolHeader == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "X-School-ID header is required")
			}
			schoolID, err := strconv.ParseUint(schoolHeader, 10, 32)
			if err != nil || schoolID == 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "X-School-ID header must be a positive integer")
			}

			c.Set(ContextSchoolID, uint(schoolID))
			c.Set(ContextActorID, c.Request().Header.Get("X-Actor-ID"))
			return next(c)
		}
	}
}

// SchoolID reads the school scope set by ActorContext
func SchoolID(c echo.Context) uint {
	if v, ok := c.Get(ContextSchoolID).(uint); ok {
		return v
	}
	return 0
}

// ActorID reads the audit actor set by ActorContext
func ActorID(c echo.Context) string {
	if v, ok := c.Get(ContextActorID).(string); ok {
		return v
	}
	return ""
}
