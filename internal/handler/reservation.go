package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kazuhito/yoyaku/internal/admission"
	"github.com/kazuhito/yoyaku/internal/model"
	"github.com/kazuhito/yoyaku/internal/queue"
	"github.com/kazuhito/yoyaku/internal/service"
)

// ReservationLister lists every reservation of a store for one day,
// cancelled included. Both the MySQL and the in-memory store satisfy it.
type ReservationLister interface {
	ListByStoreAndDate(ctx context.Context, storeID, date string) ([]model.CommittedReservation, error)
}

// ReservationHandler exposes the admission write path. All capacity
// decisions happen inside the controller; the handler translates
// Decisions and sentinel errors into the HTTP contract and publishes
// events only after the controller has committed.
type ReservationHandler struct {
	Controller *admission.Controller
	Lister     ReservationLister
	Publish    bool // emit broker events after commit
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(ctl *admission.Controller, lister ReservationLister, publish bool) *ReservationHandler {
	if ctl == nil || lister == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Controller: ctl, Lister: lister, Publish: publish}
}

// Create handles POST /v1/reservations. Accepted admissions return 201;
// a capacity denial is 409 with the stable reason_code and the denying
// rule's description, a lock timeout is 503 with Retry-After so clients
// back off and retry instead of treating it as "full".
func (h *ReservationHandler) Create(c echo.Context) error {
	var req model.ReservationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.Request().Header.Get("Idempotency-Key")
	}

	decision, err := h.Controller.TryAdmit(c.Request().Context(), req)
	if err != nil {
		switch {
		case model.IsValidation(err):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, admission.ErrConcurrencyConflict):
			c.Response().Header().Set("Retry-After", "1")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"error":     "concurrency_conflict",
				"retryable": true,
			})
		default:
			// fail closed: a datastore problem is never an acceptance
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store unavailable"})
		}
	}

	if !decision.Accepted {
		return c.JSON(http.StatusConflict, decision)
	}

	if h.Publish {
		res := decision.Reservation
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ev := queue.ReservationAcceptedEvent{
				ReservationID: res.ID,
				StoreID:       res.StoreID,
				Date:          res.Date,
				Time:          res.Time,
				PartySize:     res.PartySize,
				SeatType:      res.SeatType,
				SeatID:        res.SeatID,
				Menu:          res.Menu,
				Staff:         res.Staff,
				AcceptedAt:    time.Now().UTC().Format(time.RFC3339),
			}
			if err := service.PublishReservationAccepted(ctx, ev); err != nil {
				log.Printf("reservation handler: publish accepted event: %v", err)
			}
		}()
	}
	return c.JSON(http.StatusCreated, decision)
}

// Cancel handles DELETE /v1/reservations/:id. Cancellation reuses the
// admission lock discipline inside the controller, so freed capacity is
// released atomically with respect to racing admissions.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	res, err := h.Controller.Reservation(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store unavailable"})
	}

	if err := h.Controller.Cancel(c.Request().Context(), id); err != nil {
		switch {
		case errors.Is(err, admission.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, admission.ErrAlreadyCancelled):
			return c.JSON(http.StatusConflict, echo.Map{"error": "already cancelled"})
		case errors.Is(err, admission.ErrConcurrencyConflict):
			c.Response().Header().Set("Retry-After", "1")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "concurrency_conflict", "retryable": true})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store unavailable"})
		}
	}

	if h.Publish && res != nil {
		ev := queue.ReservationCancelledEvent{
			ReservationID: res.ID,
			StoreID:       res.StoreID,
			Date:          res.Date,
			Time:          res.Time,
			CancelledAt:   time.Now().UTC().Format(time.RFC3339),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := service.PublishReservationCancelled(ctx, ev); err != nil {
				log.Printf("reservation handler: publish cancelled event: %v", err)
			}
		}()
	}
	return c.NoContent(http.StatusNoContent)
}

// List handles GET /v1/reservations?date= for operators: every
// reservation of the caller's store on that day, cancellations included
// so the day's history is visible.
func (h *ReservationHandler) List(c echo.Context) error {
	storeID, _ := c.Get("store_id").(string)
	if storeID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	date := c.QueryParam("date")
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	items, err := h.Lister.ListByStoreAndDate(c.Request().Context(), storeID, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Controller.Reservation(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store unavailable"})
	}
	if res == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}
