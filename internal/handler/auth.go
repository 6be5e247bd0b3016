package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kazuhito/yoyaku/internal/repository"
	"github.com/kazuhito/yoyaku/internal/utils"
)

// AuthHandler signs in staff operators. Full session management
// (refresh, rotation, logout) lives outside this service; rule authoring
// only needs a short-lived access token identifying the operator and
// their store.
type AuthHandler struct {
	Operators repository.OperatorStore
	Secret    string
	AccessTTL int // minutes
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(operators repository.OperatorStore, secret string, accessTTLMin int) *AuthHandler {
	if operators == nil {
		panic("nil operator store passed to NewAuthHandler")
	}
	return &AuthHandler{Operators: operators, Secret: secret, AccessTTL: accessTTLMin}
}

// Login handles POST /v1/auth/login. It verifies the bcrypt hash and
// returns an access token carrying the operator's store and role.
func (h *AuthHandler) Login(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil || body.Email == "" || body.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	op, err := h.Operators.GetByEmail(c.Request().Context(), body.Email)
	if err != nil {
		if errors.Is(err, repository.ErrOperatorNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !utils.VerifyPassword(op.PasswordHash, body.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	tok, err := utils.NewAccessToken(h.Secret, op.ID, op.StoreID, op.Role, h.AccessTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": tok.Token,
		"expires_at":   tok.Exp.Format(time.RFC3339),
		"store_id":     op.StoreID,
		"role":         op.Role,
	})
}
