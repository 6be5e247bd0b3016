package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kazuhito/yoyaku/internal/availability"
	"github.com/kazuhito/yoyaku/internal/model"
)

// AvailabilityHandler exposes the read-only slot projection that UI
// calendars poll. It never gates writes; a degraded projection renders
// "unknown" cells rather than failing the request.
type AvailabilityHandler struct {
	Projector *availability.Projector
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(p *availability.Projector) *AvailabilityHandler {
	if p == nil {
		panic("nil projector passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Projector: p}
}

// Get handles GET /v1/stores/:id/availability?date=YYYY-MM-DD.
func (h *AvailabilityHandler) Get(c echo.Context) error {
	storeID := c.Param("id")
	if storeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}
	date := c.QueryParam("date")
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	slots := h.Projector.Project(c.Request().Context(), storeID, date)
	return c.JSON(http.StatusOK, echo.Map{
		"store_id": storeID,
		"date":     date,
		"slots":    slots,
	})
}
