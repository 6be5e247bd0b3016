package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kazuhito/yoyaku/internal/rule"
	"github.com/kazuhito/yoyaku/internal/service"
)

// CommandHandler is the operator command channel: raw text in, reply
// text out. The chat platform or CLI delivering the text is an external
// collaborator; this endpoint is the HTTP representation of it.
type CommandHandler struct {
	Commands *service.CommandService
}

// NewCommandHandler constructs a CommandHandler.
func NewCommandHandler(commands *service.CommandService) *CommandHandler {
	if commands == nil {
		panic("nil command service passed to NewCommandHandler")
	}
	return &CommandHandler{Commands: commands}
}

// Execute handles POST /v1/commands. The operator identity and store
// come from the JWT, never from the body. Parse errors are echoed back
// verbatim with 422 so the operator sees exactly what was rejected;
// non-command text is a 400.
func (h *CommandHandler) Execute(c echo.Context) error {
	storeID, _ := c.Get("store_id").(string)
	operatorID, _ := c.Get("operator_id").(string)
	if storeID == "" || operatorID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&body); err != nil || body.Text == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "text is required"})
	}

	reply, err := h.Commands.Execute(c.Request().Context(), storeID, operatorID, body.Text)
	if err != nil {
		var perr *rule.ParseError
		if errors.As(err, &perr) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"error": perr.Error(),
				"kind":  string(perr.Kind),
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "command failed"})
	}
	if reply == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "not a recognized command"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reply": reply})
}

// ListRules handles GET /v1/rules. It returns the caller's store rules
// through the same /limits rendering operators see in chat, plus the
// structured list for UI consumption.
func (h *CommandHandler) ListRules(c echo.Context) error {
	storeID, _ := c.Get("store_id").(string)
	operatorID, _ := c.Get("operator_id").(string)
	if storeID == "" || operatorID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reply, err := h.Commands.Execute(c.Request().Context(), storeID, operatorID, "/limits")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list rules"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reply": reply})
}
