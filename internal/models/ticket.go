package models

import "time"

// SeatTicketStatus tracks the seat's ticket lifecycle. Redemption states only
// apply once the seat ticket has reached PAID.
type SeatTicketStatus string

const (
	SeatAvailable SeatTicketStatus = "AVAILABLE"
	SeatBooked    SeatTicketStatus = "BOOKED"
	SeatPaid      SeatTicketStatus = "PAID"
	SeatCancelled SeatTicketStatus = "CANCELLED"
)

// RedemptionStatus tracks whether an issued ticket has been used at the venue.
type RedemptionStatus string

const (
	TicketActive  RedemptionStatus = "ACTIVE"
	TicketUsed    RedemptionStatus = "USED"
	TicketRevoked RedemptionStatus = "CANCELLED"
)

// Ticket exists only for a booking whose order is PAID. Token is an opaque
// bearer string encoded into the QR the venue scans.
type Ticket struct {
	TicketID   string           `json:"ticket_id"`
	BookingID  string           `json:"booking_id"`
	OrderID    string           `json:"order_id"`
	SeatID     string           `json:"seat_id"`
	SeatLabel  string           `json:"seat_label"`
	Token      string           `json:"token"`
	Price      int64            `json:"price"`
	SeatStatus SeatTicketStatus `json:"seat_status"`
	Redemption RedemptionStatus `json:"redemption"`
	IssuedAt   time.Time        `json:"issued_at"`
}
