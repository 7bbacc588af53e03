package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/gateway"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

// ErrGatewayUnavailable means the processor refused to issue a redirect URL.
// The booking stays PENDING; the caller may retry initiation or abandon.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// DefaultSnapshotTTL bounds the recovery window. Long enough to survive a
// slow 3-D Secure hop, short enough that a stale reference cannot hijack a
// later flow.
const DefaultSnapshotTTL = 30 * time.Minute

type APIClient interface {
	Do(ctx context.Context, method, path string, body, out interface{}) error
}

type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap models.RecoverySnapshot) error
}

type initiateRequest struct {
	BookingID      string `json:"booking_id"`
	TransactionRef string `json:"transaction_ref"`
	Method         string `json:"method"`
	Amount         int64  `json:"amount"`
	ReturnURL      string `json:"return_url"`
	CancelURL      string `json:"cancel_url"`
}

type initiateResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// Initiator obtains the gateway redirect URL for a booking and leaves a
// recovery snapshot behind before control passes to the browser. The
// snapshot is the only way back if the gateway's return loses its query
// parameters.
type Initiator struct {
	api       APIClient
	snapshots SnapshotStore
	returnURL string
	cancelURL string
	ttl       time.Duration
	log       *logger.Logger
}

func NewInitiator(api APIClient, snapshots SnapshotStore, returnURL, cancelURL string, ttl time.Duration, log *logger.Logger) *Initiator {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Initiator{
		api:       api,
		snapshots: snapshots,
		returnURL: returnURL,
		cancelURL: cancelURL,
		ttl:       ttl,
		log:       log,
	}
}

// Initiate requests a redirect URL keyed by the order's transaction reference
// and amount, then writes the recovery snapshot synchronously. The URL is
// only handed back once the snapshot is durable; a redirect the service could
// not recover from is worse than a failed initiation.
func (i *Initiator) Initiate(ctx context.Context, order *models.Order, bk *models.Booking, movieTitle string, seatLabels []string, method string) (string, error) {
	req := initiateRequest{
		BookingID:      bk.BookingID,
		TransactionRef: order.TransactionRef,
		Method:         method,
		Amount:         order.Total,
		ReturnURL:      i.returnURL,
		CancelURL:      i.cancelURL,
	}

	var resp initiateResponse
	if err := i.api.Do(ctx, http.MethodPost, "/payments/initiate", req, &resp); err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			return "", fmt.Errorf("redirect URL refused for %s: %w", order.TransactionRef, ErrGatewayUnavailable)
		}
		return "", fmt.Errorf("payment initiation failed: %w", err)
	}

	if resp.RedirectURL == "" {
		return "", fmt.Errorf("gateway returned empty redirect URL for %s: %w", order.TransactionRef, ErrGatewayUnavailable)
	}

	now := time.Now()
	snap := models.RecoverySnapshot{
		TransactionRef: order.TransactionRef,
		BookingID:      bk.BookingID,
		ShowtimeID:     bk.ShowtimeID,
		MovieTitle:     movieTitle,
		SeatLabels:     seatLabels,
		Amount:         order.Total,
		Method:         method,
		CreatedAt:      now,
		ExpiresAt:      now.Add(i.ttl),
	}

	if err := i.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return "", fmt.Errorf("failed to persist recovery snapshot for %s: %w", order.TransactionRef, err)
	}

	if i.log != nil {
		i.log.LogPayment("INITIATE", order.TransactionRef,
			fmt.Sprintf("booking=%s amount=%d method=%s snapshot ttl=%s", bk.BookingID, order.Total, method, i.ttl))
	}

	return resp.RedirectURL, nil
}
