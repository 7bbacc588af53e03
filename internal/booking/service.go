package booking

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/gateway"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

// APIClient is the slice of the request gateway the booking flow needs.
type APIClient interface {
	Do(ctx context.Context, method, path string, body, out interface{}) error
}

// Service creates the pre-payment order and the booking that links customer,
// showtime and seats. Order creation strictly precedes booking creation; the
// transaction reference does not exist until the order does.
type Service struct {
	api APIClient
	log *logger.Logger
}

func NewService(api APIClient, log *logger.Logger) *Service {
	return &Service{api: api, log: log}
}

// CreateOrder asks the core API for a pre-payment order. The response carries
// the transaction reference used to correlate the eventual gateway callback.
func (s *Service) CreateOrder(ctx context.Context, customer models.Customer, customerID string, showtime models.Showtime, amount int64) (*models.Order, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("order amount must be positive: %w", gateway.ErrValidation)
	}

	req := models.CreateOrderRequest{
		CustomerID: customerID,
		ShowtimeID: showtime.ShowtimeID,
		Total:      amount,
	}

	var order models.Order
	if err := s.api.Do(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return nil, fmt.Errorf("order creation failed: %w", err)
	}

	if order.TransactionRef == "" {
		return nil, fmt.Errorf("order %s has no transaction reference: %w", order.OrderID, gateway.ErrValidation)
	}

	if s.log != nil {
		s.log.LogBooking("ORDER", order.OrderID, fmt.Sprintf("created, ref=%s total=%d", order.TransactionRef, order.Total))
	}
	return &order, nil
}

// CreateBooking reserves the selected seats against the order. A server-side
// conflict (someone else booked a seat first) surfaces as ErrSeatConflict so
// the caller re-prompts seat selection instead of retrying.
func (s *Service) CreateBooking(ctx context.Context, order *models.Order, seats []models.Seat, customer models.Customer) (*models.Booking, error) {
	if len(seats) == 0 {
		return nil, fmt.Errorf("seat list is empty: %w", gateway.ErrValidation)
	}

	var total int64
	seatIDs := make([]string, 0, len(seats))
	for _, seat := range seats {
		seatIDs = append(seatIDs, seat.SeatID)
		total += seat.Price
	}
	if total != order.Total {
		return nil, fmt.Errorf("order total %d does not match seat total %d: %w", order.Total, total, gateway.ErrValidation)
	}

	req := models.CreateBookingRequest{
		OrderID:    order.OrderID,
		ShowtimeID: order.ShowtimeID,
		SeatIDs:    seatIDs,
		Customer:   customer,
	}

	var bk models.Booking
	if err := s.api.Do(ctx, http.MethodPost, "/bookings", req, &bk); err != nil {
		return nil, fmt.Errorf("booking creation failed: %w", err)
	}

	if s.log != nil {
		s.log.LogBooking("CREATE", bk.BookingID, fmt.Sprintf("order=%s seats=%d status=%s", order.OrderID, len(seatIDs), bk.Status))
	}
	return &bk, nil
}

// Reserve is the combined seat-selection handoff: validates the session,
// creates the order, then the booking. On a seat conflict the session is
// reset so the user can pick again.
func (s *Service) Reserve(ctx context.Context, sel *SeatSelection, customer models.Customer, customerID string) (*models.Order, *models.Booking, error) {
	if sel.Empty() {
		return nil, nil, fmt.Errorf("no seats selected: %w", gateway.ErrValidation)
	}
	if err := sel.MarkSubmitted(); err != nil {
		return nil, nil, fmt.Errorf("%v: %w", err, gateway.ErrValidation)
	}

	order, err := s.CreateOrder(ctx, customer, customerID, sel.Showtime(), sel.Total())
	if err != nil {
		sel.Reset()
		return nil, nil, err
	}

	bk, err := s.CreateBooking(ctx, order, sel.Seats(), customer)
	if err != nil {
		sel.Reset()
		return nil, nil, err
	}

	return order, bk, nil
}

// Lookup fetches the full booking detail for a transaction reference.
func (s *Service) Lookup(ctx context.Context, transactionRef string) (*models.BookingDetail, error) {
	var detail models.BookingDetail
	if err := s.api.Do(ctx, http.MethodGet, "/bookings/by-reference/"+transactionRef, nil, &detail); err != nil {
		return nil, fmt.Errorf("booking lookup failed: %w", err)
	}
	return &detail, nil
}
