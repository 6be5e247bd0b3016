// Package handler defines the HTTP handlers: operator auth, the command
// channel, the reservation write path and the availability read path.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the load-balancer health check.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
