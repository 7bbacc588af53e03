package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/gateway"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

// State is where the reconciliation run currently stands. FAILED is reachable
// from every state.
type State string

const (
	StateAwaitingParams State = "AWAITING_PARAMS"
	StateResolving      State = "RESOLVING_REFERENCE"
	StateConfirming     State = "CONFIRMING"
	StateIssuingTickets State = "ISSUING_TICKETS"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

var (
	// ErrNoPaymentContext means the return URL carried nothing usable and no
	// recovery snapshot survived. The user is sent back to the booking flow.
	ErrNoPaymentContext = errors.New("no payment context to reconcile")

	// ErrPartialTicketData means payment is confirmed but the ticket detail
	// came back empty or malformed. Non-fatal: the money moved, so the flow
	// still completes and the UI shows booking id and total instead.
	ErrPartialTicketData = errors.New("ticket detail incomplete")
)

// DeclinedError is the gateway's own rejection, surfaced with its code. It is
// the one failure considered non-retryable: the snapshot is cleared because
// retrying reconciliation cannot change the processor's answer.
type DeclinedError struct {
	TransactionRef string
	Code           string
	Message        string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment %s declined by gateway (code %s): %s", e.TransactionRef, e.Code, e.Message)
}

// alreadyConfirmedCode is what the core API answers when a reference was
// confirmed by an earlier (or concurrent) callback. Client-side this is
// success; it is still logged separately so duplicate deliveries stay
// visible in the audit trail.
const alreadyConfirmedCode = "ALREADY_CONFIRMED"

type APIClient interface {
	Do(ctx context.Context, method, path string, body, out interface{}) error
}

// SnapshotStore extends read access with the cleanup the reconciler performs
// on reaching a terminal state.
type SnapshotStore interface {
	SnapshotReader
	DeleteSnapshot(ctx context.Context, transactionRef string) error
	ClearLastReference(ctx context.Context) error
}

// Notifier sends the booking confirmation. Failures are reported, never
// propagated: notification can't roll back a captured payment.
type Notifier interface {
	Notify(ctx context.Context, detail *models.BookingDetail) (bool, error)
}

// Publisher emits booking lifecycle events for downstream consumers.
type Publisher interface {
	PublishBookingConfirmed(detail *models.BookingDetail) error
	PublishPaymentFailed(transactionRef, code string) error
}

type confirmRequest struct {
	TransactionRef string `json:"transaction_ref"`
}

// Result is what a reconciliation run produced, whichever state it ended in.
type Result struct {
	State          State
	TransactionRef string
	Source         string
	Detail         *models.BookingDetail
	Partial        bool
}

// Reconciler is the landing point after the payment gateway redirects back.
// It resolves which order is being completed, confirms it idempotently, and
// triggers ticket issuance and notification.
type Reconciler struct {
	api        APIClient
	store      SnapshotStore
	notifier   Notifier
	events     Publisher
	strategies []Strategy
	log        *logger.Logger
}

func New(api APIClient, store SnapshotStore, notifier Notifier, events Publisher, log *logger.Logger) *Reconciler {
	return &Reconciler{
		api:        api,
		store:      store,
		notifier:   notifier,
		events:     events,
		strategies: DefaultStrategies(),
		log:        log,
	}
}

// WithStrategies overrides the resolution order.
func (r *Reconciler) WithStrategies(strategies []Strategy) *Reconciler {
	r.strategies = strategies
	return r
}

// Reconcile runs the state machine for one gateway return. The error is nil
// only for a clean DONE; ErrPartialTicketData accompanies a DONE result whose
// ticket detail was degraded. On retryable failures the snapshot is left in
// place so the user can reconcile again without paying again.
func (r *Reconciler) Reconcile(ctx context.Context, params url.Values) (*Result, error) {
	res := &Result{State: StateAwaitingParams}
	r.logState(res.State, "", fmt.Sprintf("%d query parameters", len(params)))

	res.State = StateResolving
	resolution, err := r.resolve(ctx, params)
	if err != nil {
		var declined *DeclinedError
		if errors.As(err, &declined) {
			// The gateway said no. Non-retryable: clean up the snapshot and
			// surface the code.
			res.State = StateFailed
			res.TransactionRef = declined.TransactionRef
			r.logState(res.State, declined.TransactionRef, fmt.Sprintf("gateway declined with code %s", declined.Code))
			r.cleanup(ctx, declined.TransactionRef)
			if r.events != nil {
				if perr := r.events.PublishPaymentFailed(declined.TransactionRef, declined.Code); perr != nil {
					r.logError(declined.TransactionRef, fmt.Sprintf("failed to publish payment failure: %v", perr))
				}
			}
			return res, declined
		}

		res.State = StateFailed
		r.logState(res.State, "", err.Error())
		return res, err
	}
	if resolution == nil {
		res.State = StateFailed
		r.logState(res.State, "", "no strategy applicable")
		return res, ErrNoPaymentContext
	}

	res.TransactionRef = resolution.TransactionRef
	res.Source = resolution.Source
	r.logState(StateResolving, res.TransactionRef, fmt.Sprintf("resolved via %s", resolution.Source))

	res.State = StateConfirming
	detail, err := r.confirm(ctx, resolution.TransactionRef)
	if err != nil {
		// Retryable: the snapshot stays so reconciliation can run again.
		res.State = StateFailed
		r.logState(res.State, res.TransactionRef, fmt.Sprintf("confirmation failed: %v", err))
		return res, err
	}

	res.State = StateIssuingTickets
	res.Detail = detail
	if len(detail.Tickets) == 0 || !ticketsWellFormed(detail.Tickets) {
		res.Partial = true
		r.logState(res.State, res.TransactionRef, "ticket detail empty or malformed, degrading display")
	} else {
		r.logState(res.State, res.TransactionRef, fmt.Sprintf("%d tickets issued", len(detail.Tickets)))
		if r.notifier != nil {
			if sent, nerr := r.notifier.Notify(ctx, detail); nerr != nil {
				r.logError(res.TransactionRef, fmt.Sprintf("notification failed (booking still paid): %v", nerr))
			} else if sent {
				r.logState(res.State, res.TransactionRef, "confirmation notification sent")
			}
		}
	}

	if r.events != nil {
		if perr := r.events.PublishBookingConfirmed(detail); perr != nil {
			r.logError(res.TransactionRef, fmt.Sprintf("failed to publish booking confirmation: %v", perr))
		}
	}

	r.cleanup(ctx, res.TransactionRef)
	res.State = StateDone
	r.logState(res.State, res.TransactionRef, "reconciliation complete")

	if res.Partial {
		return res, ErrPartialTicketData
	}
	return res, nil
}

func (r *Reconciler) resolve(ctx context.Context, params url.Values) (*Resolution, error) {
	for _, strategy := range r.strategies {
		resolution, err := strategy.Resolve(ctx, params, r.store)
		if err != nil {
			return nil, err
		}
		if resolution != nil {
			return resolution, nil
		}
	}
	return nil, nil
}

// confirm marks the order PAID and the booking CONFIRMED. The endpoint is
// idempotent server-side; an "already confirmed" answer is success here, just
// logged on its own so duplicate callback deliveries remain auditable.
func (r *Reconciler) confirm(ctx context.Context, transactionRef string) (*models.BookingDetail, error) {
	var detail models.BookingDetail
	err := r.api.Do(ctx, http.MethodPost, "/payments/confirm", confirmRequest{TransactionRef: transactionRef}, &detail)
	if err == nil {
		return &detail, nil
	}

	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Code == alreadyConfirmedCode {
		if r.log != nil {
			r.log.Debug("RECONCILE", fmt.Sprintf("%s already confirmed, fetching booking detail", transactionRef))
		}
		var existing models.BookingDetail
		if lerr := r.api.Do(ctx, http.MethodGet, "/bookings/by-reference/"+transactionRef, nil, &existing); lerr != nil {
			return nil, fmt.Errorf("lookup after duplicate confirmation failed: %w", lerr)
		}
		return &existing, nil
	}

	return nil, fmt.Errorf("payment confirmation failed: %w", err)
}

// cleanup removes the recovery context once the flow can no longer be
// retried. Errors here are logged and swallowed: a leftover snapshot expires
// on its own.
func (r *Reconciler) cleanup(ctx context.Context, transactionRef string) {
	if r.store == nil {
		return
	}
	if err := r.store.DeleteSnapshot(ctx, transactionRef); err != nil {
		r.logError(transactionRef, fmt.Sprintf("failed to delete snapshot: %v", err))
	}
	if err := r.store.ClearLastReference(ctx); err != nil {
		r.logError(transactionRef, fmt.Sprintf("failed to clear last reference: %v", err))
	}
}

func ticketsWellFormed(tickets []models.Ticket) bool {
	for _, t := range tickets {
		if t.TicketID == "" || t.Token == "" {
			return false
		}
	}
	return true
}

func (r *Reconciler) logState(state State, txnRef, message string) {
	if r.log == nil {
		return
	}
	if txnRef == "" {
		txnRef = "-"
	}
	r.log.LogReconcile(string(state), txnRef, message)
}

func (r *Reconciler) logError(txnRef, message string) {
	if r.log != nil {
		r.log.Error("RECONCILE", fmt.Sprintf("%s - %s", txnRef, message))
	}
}
