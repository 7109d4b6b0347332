package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campuspool/campuspool/internal/model"
	"github.com/campuspool/campuspool/internal/repository"
)

// RideHandler serves ride publication, search and driver-side management.
type RideHandler struct {
	Rides    *repository.RideRepo
	Bookings *repository.BookingRepo
	Users    *repository.UserRepo
}

func NewRideHandler(r *repository.RideRepo, b *repository.BookingRepo, u *repository.UserRepo) *RideHandler {
	return &RideHandler{Rides: r, Bookings: b, Users: u}
}

type createRideReq struct {
	OriginText     string  `json:"origin_text"`
	OriginLat      float64 `json:"origin_lat"`
	OriginLng      float64 `json:"origin_lng"`
	DestText       string  `json:"dest_text"`
	DestLat        float64 `json:"dest_lat"`
	DestLng        float64 `json:"dest_lng"`
	DepartsAt      string  `json:"departs_at"` // RFC 3339
	Seats          int     `json:"seats"`
	TotalCostCents int64   `json:"total_cost_cents"`
	RoutePolyline  string  `json:"route_polyline"`
}

type rideResp struct {
	ID             uint64    `json:"id"`
	DriverID       uint64    `json:"driver_id"`
	OriginText     string    `json:"origin_text"`
	DestText       string    `json:"dest_text"`
	DepartsAt      time.Time `json:"departs_at"`
	SeatsTotal     uint8     `json:"seats_total"`
	SeatsAvailable uint8     `json:"seats_available"`
	TotalCostCents int64     `json:"total_cost_cents"`
	Status         string    `json:"status"`
}

func toRideResp(r model.Ride) rideResp {
	return rideResp{
		ID:             r.ID,
		DriverID:       r.DriverID,
		OriginText:     r.OriginText,
		DestText:       r.DestText,
		DepartsAt:      r.DepartsAt,
		SeatsTotal:     r.SeatsTotal,
		SeatsAvailable: r.SeatsAvailable,
		TotalCostCents: r.TotalCostCents,
		Status:         r.Status,
	}
}

// Create publishes a ride. Only verified drivers may publish; the seat
// ledger starts with every seat available.
func (h *RideHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createRideReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.OriginText) == "" || strings.TrimSpace(req.DestText) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "origin_text/dest_text required"})
	}
	if req.Seats < 1 || req.Seats > 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats must be 1-8"})
	}
	if req.TotalCostCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_cost_cents must be >= 0"})
	}
	departsAt, err := time.Parse(time.RFC3339, req.DepartsAt)
	if err != nil || !departsAt.After(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "departs_at must be a future RFC 3339 time"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	if !u.DriverVerified {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "driver not verified"})
	}

	ride := model.Ride{
		DriverID:       uid,
		OriginText:     strings.TrimSpace(req.OriginText),
		OriginLat:      req.OriginLat,
		OriginLng:      req.OriginLng,
		DestText:       strings.TrimSpace(req.DestText),
		DestLat:        req.DestLat,
		DestLng:        req.DestLng,
		DepartsAt:      departsAt.UTC(),
		SeatsTotal:     uint8(req.Seats),
		TotalCostCents: req.TotalCostCents,
	}
	if p := strings.TrimSpace(req.RoutePolyline); p != "" {
		ride.RoutePolyline = &p
	}
	if err := h.Rides.Create(ctx, &ride); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create ride failed"})
	}
	return c.JSON(http.StatusCreated, toRideResp(ride))
}

// Search lists open future rides matching optional origin/dest substrings
// and an optional ?date=YYYY-MM-DD filter.
func (h *RideHandler) Search(c echo.Context) error {
	origin := strings.TrimSpace(c.QueryParam("origin"))
	dest := strings.TrimSpace(c.QueryParam("dest"))

	var day *time.Time
	if d := c.QueryParam("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		day = &parsed
	}
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rides, err := h.Rides.Search(ctx, origin, dest, day, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	out := make([]rideResp, 0, len(rides))
	for _, r := range rides {
		out = append(out, toRideResp(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"rides": out})
}

// Get returns one ride.
func (h *RideHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ride id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	ride, err := h.Rides.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRideNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ride not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toRideResp(ride))
}

// MyRides lists the authenticated driver's rides.
func (h *RideHandler) MyRides(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rides, err := h.Rides.ListByDriver(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]rideResp, 0, len(rides))
	for _, r := range rides {
		out = append(out, toRideResp(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"rides": out})
}

// Cancel withdraws an unstarted ride. A ride with active bookings cannot be
// cancelled wholesale; the driver must cancel the bookings first so every
// rider gets a notification.
func (h *RideHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ride id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	ride, err := h.Rides.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRideNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ride not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if ride.DriverID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your ride"})
	}
	if ride.Status != model.RideOpen && ride.Status != model.RideFull {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ride already started or closed"})
	}

	bookings, err := h.Bookings.ListByRide(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	for _, b := range bookings {
		for _, s := range model.ActiveBookingStatuses {
			if b.Status == s {
				return c.JSON(http.StatusConflict, echo.Map{"error": "ride has active bookings"})
			}
		}
	}

	tx, err := h.Rides.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Rides.SetStatusTx(ctx, tx, id, model.RideCancelled); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	committed = true
	return c.NoContent(http.StatusNoContent)
}
