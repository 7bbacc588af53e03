package models

import "time"

// RecoverySnapshot is written to the local store right before handing the
// browser to the payment gateway. If the gateway's return URL comes back with
// no usable parameters, reconciliation falls back to this record. It expires
// after a bounded window and is deleted once reconciliation finishes.
type RecoverySnapshot struct {
	TransactionRef string    `json:"transaction_ref"`
	BookingID      string    `json:"booking_id"`
	ShowtimeID     string    `json:"showtime_id"`
	MovieTitle     string    `json:"movie_title"`
	SeatLabels     []string  `json:"seat_labels"`
	Amount         int64     `json:"amount"`
	Method         string    `json:"method"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired reports whether the snapshot is past its recovery window.
func (s *RecoverySnapshot) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
