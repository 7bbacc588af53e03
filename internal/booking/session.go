package booking

import (
	"errors"
	"sort"
	"sync"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

// ErrAlreadySubmitted guards against the same session double-submitting.
var ErrAlreadySubmitted = errors.New("selection already submitted")

// SeatSelection is the client-held set of chosen seats for one showtime. It
// is not a reservation lock: two users can select the same seat and only the
// server-side conflict check at booking time decides who gets it. Its only
// exclusivity job is stopping the same user from submitting twice.
type SeatSelection struct {
	mu        sync.Mutex
	showtime  models.Showtime
	seats     map[string]models.Seat
	submitted bool
}

func NewSeatSelection(showtime models.Showtime) *SeatSelection {
	return &SeatSelection{
		showtime: showtime,
		seats:    make(map[string]models.Seat),
	}
}

func (s *SeatSelection) Showtime() models.Showtime {
	return s.showtime
}

// Toggle adds the seat to the selection, or removes it if already selected.
// Returns whether the seat is selected afterwards.
func (s *SeatSelection) Toggle(seat models.Seat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seats[seat.SeatID]; ok {
		delete(s.seats, seat.SeatID)
		return false
	}
	s.seats[seat.SeatID] = seat
	return true
}

// Seats returns the selection ordered by label.
func (s *SeatSelection) Seats() []models.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Seat, 0, len(s.seats))
	for _, seat := range s.seats {
		out = append(out, seat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Total is the seats-derived price. Discounts are applied upstream of order
// creation, never here.
func (s *SeatSelection) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, seat := range s.seats {
		total += seat.Price
	}
	return total
}

// MarkSubmitted flags the selection as handed off to order creation.
func (s *SeatSelection) MarkSubmitted() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitted {
		return ErrAlreadySubmitted
	}
	s.submitted = true
	return nil
}

// Reset clears the submitted flag so the user can retry after a seat
// conflict or an abandoned payment.
func (s *SeatSelection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = false
}

func (s *SeatSelection) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seats) == 0
}
