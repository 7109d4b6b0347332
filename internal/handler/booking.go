package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campuspool/campuspool/internal/model"
	"github.com/campuspool/campuspool/internal/otp"
	"github.com/campuspool/campuspool/internal/repository"
	"github.com/campuspool/campuspool/internal/service"
)

// BookingHandler exposes the booking lifecycle over HTTP. All state changes
// go through BookingService; this layer only binds requests and maps errors
// to status codes.
type BookingHandler struct {
	Svc      *service.BookingService
	Bookings *repository.BookingRepo
}

func NewBookingHandler(svc *service.BookingService, b *repository.BookingRepo) *BookingHandler {
	return &BookingHandler{Svc: svc, Bookings: b}
}

type bookReq struct {
	RideID uint64 `json:"ride_id"`
	Seats  int    `json:"seats"`
}
type startTripReq struct {
	Code string `json:"code"`
}

type bookingResp struct {
	Reference         string     `json:"reference"`
	RideID            uint64     `json:"ride_id"`
	Seats             uint8      `json:"seats"`
	AuthEstimateCents int64      `json:"auth_estimate_cents"`
	FinalShareCents   *int64     `json:"final_share_cents,omitempty"`
	Status            string     `json:"status"`
	TripStartedAt     *time.Time `json:"trip_started_at,omitempty"`
	TripCompletedAt   *time.Time `json:"trip_completed_at,omitempty"`
}

func toBookingResp(b model.Booking) bookingResp {
	return bookingResp{
		Reference:         b.Reference,
		RideID:            b.RideID,
		Seats:             b.Seats,
		AuthEstimateCents: b.AuthEstimateCents,
		FinalShareCents:   b.FinalShareCents,
		Status:            b.Status,
		TripStartedAt:     b.TripStartedAt,
		TripCompletedAt:   b.TripCompletedAt,
	}
}

// Book reserves seats. The trip-start code is returned exactly once, in
// this response and the rider's confirmation email; it is not retrievable
// afterwards.
func (h *BookingHandler) Book(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.RideID == 0 || req.Seats < 1 || req.Seats > 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ride_id and seats (1-8) required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, code, err := h.Svc.Book(ctx, uid, req.RideID, uint8(req.Seats))
	if err != nil {
		return bookingError(c, err)
	}
	resp := toBookingResp(booking)
	return c.JSON(http.StatusCreated, echo.Map{
		"booking":   resp,
		"trip_code": code,
	})
}

// StartTrip verifies the trip-start code for a booking.
func (h *BookingHandler) StartTrip(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ref := strings.TrimSpace(c.Param("ref"))
	var req startTripReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Svc.StartTrip(ctx, uid, ref, strings.TrimSpace(req.Code)); err != nil {
		return bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CompleteTrip settles all in-progress bookings on the driver's ride.
func (h *BookingHandler) CompleteTrip(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rideID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ride id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	settled, err := h.Svc.CompleteTrip(ctx, uid, rideID)
	if err != nil {
		return bookingError(c, err)
	}
	out := make([]bookingResp, 0, len(settled))
	for _, b := range settled {
		out = append(out, toBookingResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"settled": out})
}

// Cancel voids a booking before the trip starts.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ref := strings.TrimSpace(c.Param("ref"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Svc.Cancel(ctx, uid, ref); err != nil {
		return bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Dispute flags a completed booking for operator review.
func (h *BookingHandler) Dispute(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ref := strings.TrimSpace(c.Param("ref"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Svc.Dispute(ctx, uid, ref); err != nil {
		return bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MyBookings lists the rider's bookings, newest first.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	bookings, err := h.Bookings.ListByRider(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]bookingResp, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// bookingError maps service and repository sentinels to HTTP statuses.
func bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrRideNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ride not found"})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrInsufficientSeats):
		return c.JSON(http.StatusConflict, echo.Map{"error": "not enough seats available"})
	case errors.Is(err, repository.ErrRideNotOpen):
		return c.JSON(http.StatusConflict, echo.Map{"error": "ride is not open for booking"})
	case errors.Is(err, service.ErrSelfBooking):
		return c.JSON(http.StatusConflict, echo.Map{"error": "cannot book your own ride"})
	case errors.Is(err, service.ErrDuplicateBooking):
		return c.JSON(http.StatusConflict, echo.Map{"error": "active booking already exists for this ride"})
	case errors.Is(err, service.ErrRideDeparted):
		return c.JSON(http.StatusConflict, echo.Map{"error": "ride departure time has passed"})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "operation not allowed in current status"})
	case errors.Is(err, service.ErrNoActiveBookings):
		return c.JSON(http.StatusConflict, echo.Map{"error": "no bookings in progress"})
	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, otp.ErrCodeExpired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "code expired"})
	case errors.Is(err, otp.ErrCodeMismatch):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid code"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
	}
}
