package models

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// IsTerminal reports whether no further status transition is allowed.
// Booking status is monotonic: PENDING may move to CONFIRMED or CANCELLED,
// nothing moves out of those.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingConfirmed || s == BookingCancelled
}

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

type Booking struct {
	BookingID  string        `json:"booking_id"`
	OrderID    string        `json:"order_id"`
	ShowtimeID string        `json:"showtime_id"`
	SeatIDs    []string      `json:"seat_ids"`
	Customer   Customer      `json:"customer"`
	Total      int64         `json:"total"`
	Status     BookingStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

type CreateBookingRequest struct {
	OrderID    string   `json:"order_id"`
	ShowtimeID string   `json:"showtime_id"`
	SeatIDs    []string `json:"seat_ids"`
	Customer   Customer `json:"customer"`
}

// BookingDetail is the full booking view returned by the confirmation and
// by-reference lookup endpoints, including any issued tickets.
type BookingDetail struct {
	Booking        Booking     `json:"booking"`
	OrderStatus    OrderStatus `json:"order_status"`
	TransactionRef string      `json:"transaction_ref"`
	Movie          string      `json:"movie"`
	ShowtimeStart  time.Time   `json:"showtime_start"`
	Tickets        []Ticket    `json:"tickets"`
}
