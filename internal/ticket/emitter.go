package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

// ErrNotificationFailed is non-fatal: the booking is paid whether or not the
// confirmation message got out. Reported and logged, never rolled back.
var ErrNotificationFailed = errors.New("confirmation notification failed")

// MarkerStore is the durable exactly-once guard. MarkNotified must be
// first-caller-wins across process restarts.
type MarkerStore interface {
	MarkNotified(ctx context.Context, bookingID, recipient string) (bool, error)
	UnmarkNotified(ctx context.Context, bookingID string) error
}

// Sender delivers the built message to the customer's contact address.
type Sender interface {
	Send(to, subject, body string, qrPNG []byte) error
}

// Emitter sends the booking confirmation exactly once per booking id. The
// marker is claimed before sending and released if the send fails, so a
// retry is possible but a duplicate is not.
type Emitter struct {
	markers MarkerStore
	sender  Sender
	log     *logger.Logger
}

func NewEmitter(markers MarkerStore, sender Sender, log *logger.Logger) *Emitter {
	return &Emitter{markers: markers, sender: sender, log: log}
}

// Notify returns (true, nil) when this call sent the message, (false, nil)
// when an earlier call already did.
func (e *Emitter) Notify(ctx context.Context, detail *models.BookingDetail) (bool, error) {
	bk := detail.Booking

	claimed, err := e.markers.MarkNotified(ctx, bk.BookingID, bk.Customer.Email)
	if err != nil {
		return false, fmt.Errorf("failed to claim notification marker: %w", err)
	}
	if !claimed {
		if e.log != nil {
			e.log.Debug("NOTIFY", fmt.Sprintf("booking %s already notified, skipping", bk.BookingID))
		}
		return false, nil
	}

	var qrPNG []byte
	if len(detail.Tickets) > 0 && detail.Tickets[0].Token != "" {
		qrPNG, err = qrcode.Encode(detail.Tickets[0].Token, qrcode.Medium, 256)
		if err != nil {
			if e.log != nil {
				e.log.Warn("NOTIFY", fmt.Sprintf("failed to render QR for booking %s, sending without it: %v", bk.BookingID, err))
			}
			qrPNG = nil
		}
	}

	subject := fmt.Sprintf("Your tickets for %s", detail.Movie)
	body := buildBody(detail)

	if err := e.sender.Send(bk.Customer.Email, subject, body, qrPNG); err != nil {
		// Release the claim so a later attempt can retry the send.
		if uerr := e.markers.UnmarkNotified(ctx, bk.BookingID); uerr != nil && e.log != nil {
			e.log.Error("NOTIFY", fmt.Sprintf("failed to release marker for booking %s: %v", bk.BookingID, uerr))
		}
		return false, fmt.Errorf("%v: %w", err, ErrNotificationFailed)
	}

	if e.log != nil {
		e.log.Info("NOTIFY", fmt.Sprintf("confirmation sent for booking %s to %s", bk.BookingID, bk.Customer.Email))
	}
	return true, nil
}

func buildBody(detail *models.BookingDetail) string {
	bk := detail.Booking

	seats := make([]string, 0, len(detail.Tickets))
	for _, t := range detail.Tickets {
		seats = append(seats, t.SeatLabel)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", bk.Customer.Name)
	fmt.Fprintf(&b, "Your booking %s is confirmed.\n\n", bk.BookingID)
	fmt.Fprintf(&b, "Movie:     %s\n", detail.Movie)
	fmt.Fprintf(&b, "Showtime:  %s\n", detail.ShowtimeStart.Format("Mon, 02 Jan 2006 15:04"))
	if len(seats) > 0 {
		fmt.Fprintf(&b, "Seats:     %s\n", strings.Join(seats, ", "))
	}
	fmt.Fprintf(&b, "Total:     %d\n\n", bk.Total)
	b.WriteString("Show the attached QR code at the entrance.\n")
	return b.String()
}
