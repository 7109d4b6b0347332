package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campuspool/campuspool/internal/notify"
	"github.com/campuspool/campuspool/internal/repository"
)

// AdminHandler exposes the operator surface: dead-letter inspection and
// purge, a manual dispatcher pass, and driver KYC verification.
type AdminHandler struct {
	Notify           *notify.Queue
	Dispatcher       *notify.Dispatcher
	Users            *repository.UserRepo
	DeadLetterMaxAge time.Duration
}

func NewAdminHandler(q *notify.Queue, d *notify.Dispatcher, u *repository.UserRepo, maxAge time.Duration) *AdminHandler {
	return &AdminHandler{Notify: q, Dispatcher: d, Users: u, DeadLetterMaxAge: maxAge}
}

// DeadLetters lists permanently failed notifications, newest first.
func (h *AdminHandler) DeadLetters(c echo.Context) error {
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	letters, err := h.Notify.DeadLetters(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"dead_letters": letters})
}

// PurgeDeadLetters removes dead letters past the retention window.
func (h *AdminHandler) PurgeDeadLetters(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	n, err := h.Notify.PurgeDeadLetters(ctx, h.DeadLetterMaxAge)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "purge failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"purged": n})
}

// RunDispatch triggers one dispatcher pass outside the timer. Returns how
// many items the pass attempted; 0 with busy=true when a pass already holds
// the guard.
func (h *AdminHandler) RunDispatch(c echo.Context) error {
	processed, err := h.Dispatcher.ProcessOnce(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "dispatch failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"processed": processed})
}

// VerifyDriver flips a user's driver_verified flag after KYC review.
func (h *AdminHandler) VerifyDriver(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req struct {
		Verified bool `json:"verified"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.SetDriverVerified(ctx, id, req.Verified); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
