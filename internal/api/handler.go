package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/auth"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/booking"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/gateway"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/payment"
)

// Handler serves the storefront JSON API: checkout and booking lookup.
type Handler struct {
	Bookings *booking.Service
	Payments *payment.Initiator
	Logger   *logger.Logger
}

func NewHandler(bookings *booking.Service, payments *payment.Initiator, log *logger.Logger) *Handler {
	return &Handler{
		Bookings: bookings,
		Payments: payments,
		Logger:   log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/v1/checkout", h.Checkout)
	r.Get("/api/v1/bookings/{reference}", h.GetBooking)
}

type CheckoutRequest struct {
	Showtime models.Showtime `json:"showtime"`
	Seats    []models.Seat   `json:"seats"`
	Customer models.Customer `json:"customer"`
	Method   string          `json:"method"`
}

type CheckoutResponse struct {
	BookingID      string `json:"booking_id"`
	OrderID        string `json:"order_id"`
	TransactionRef string `json:"transaction_ref"`
	Total          int64  `json:"total"`
	RedirectURL    string `json:"redirect_url"`
}

// Checkout runs selection → order → booking → payment initiation and hands
// the browser the gateway redirect URL.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Checkout: failed to decode request body: %v", err))
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	sel := booking.NewSeatSelection(req.Showtime)
	for _, seat := range req.Seats {
		sel.Toggle(seat)
	}

	customerID := auth.CustomerID(r.Context())
	order, bk, err := h.Bookings.Reserve(r.Context(), sel, req.Customer, customerID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Checkout: reservation failed: %v", err))
		h.writeTaxonomyError(w, err)
		return
	}

	seatLabels := make([]string, 0, len(req.Seats))
	for _, seat := range sel.Seats() {
		seatLabels = append(seatLabels, seat.Label)
	}

	redirectURL, err := h.Payments.Initiate(r.Context(), order, bk, req.Showtime.MovieTitle, seatLabels, req.Method)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Checkout: payment initiation failed: %v", err))
		h.writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CheckoutResponse{
		BookingID:      bk.BookingID,
		OrderID:        order.OrderID,
		TransactionRef: order.TransactionRef,
		Total:          order.Total,
		RedirectURL:    redirectURL,
	})
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	h.Logger.Info("API", fmt.Sprintf("GetBooking: reference=%s", reference))

	detail, err := h.Bookings.Lookup(r.Context(), reference)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetBooking: lookup failed: %v", err))
		h.writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// writeTaxonomyError maps normalized errors onto status codes and stable
// client-facing codes.
func (h *Handler) writeTaxonomyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrSeatConflict):
		writeError(w, http.StatusConflict, "SEAT_CONFLICT", "one or more seats were just taken, please re-select")
	case errors.Is(err, gateway.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
	case errors.Is(err, auth.ErrAuthExpired):
		writeError(w, http.StatusUnauthorized, "AUTH_EXPIRED", "session expired, please log in again")
	case errors.Is(err, gateway.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "you do not have access to this resource")
	case errors.Is(err, gateway.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, payment.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "payment gateway unavailable, booking kept pending, please retry")
	case errors.Is(err, gateway.ErrUnavailable), errors.Is(err, auth.ErrRefreshUnavailable):
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "service temporarily unavailable, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
