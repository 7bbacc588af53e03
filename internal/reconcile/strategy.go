package reconcile

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

// Application-level return parameters.
const (
	paramStatus  = "status"
	paramTxnRef  = "txnRef"
	paramMessage = "message"

	statusSuccess = "success"
)

// Gateway-native return parameters, in the processor's own vocabulary. The
// secure hash is gateway-signed and deliberately ignored here: the server-side
// confirmation call is the trust anchor, not anything the browser carries.
const (
	gwParamResponseCode = "vnp_ResponseCode"
	gwParamTxnRef       = "vnp_TxnRef"
	gwParamAmount       = "vnp_Amount"
	gwParamBankCode     = "vnp_BankCode"
	gwParamTxnStatus    = "vnp_TransactionStatus"
	gwParamSecureHash   = "vnp_SecureHash"

	gwCodeApproved = "00"
)

// SnapshotReader is the slice of the local store reference resolution needs.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, transactionRef string) (*models.RecoverySnapshot, error)
	PendingSnapshot(ctx context.Context) (*models.RecoverySnapshot, error)
	LastReference(ctx context.Context) (string, error)
}

// Resolution is a successfully resolved transaction reference plus where it
// came from.
type Resolution struct {
	TransactionRef string
	Source         string
}

// Strategy tries to pull a transaction reference out of whatever survived the
// redirect. Returning (nil, nil) means "not applicable, try the next one".
// Returning a DeclinedError is terminal: the gateway itself said no.
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context, params url.Values, store SnapshotReader) (*Resolution, error)
}

// DefaultStrategies is the resolution order: application params, gateway
// params, pending snapshot, last-used reference. Real redirects lose data in
// unpredictable ways; an ordered list keeps the fallbacks testable and lets a
// new URL shape slot in without touching the state machine.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "app-params", Resolve: resolveAppParams},
		{Name: "gateway-params", Resolve: resolveGatewayParams},
		{Name: "pending-snapshot", Resolve: resolvePendingSnapshot},
		{Name: "last-reference", Resolve: resolveLastReference},
	}
}

func resolveAppParams(_ context.Context, params url.Values, _ SnapshotReader) (*Resolution, error) {
	status := params.Get(paramStatus)
	ref := params.Get(paramTxnRef)
	if status == "" || ref == "" {
		return nil, nil
	}

	if status != statusSuccess {
		return nil, &DeclinedError{
			TransactionRef: ref,
			Code:           status,
			Message:        params.Get(paramMessage),
		}
	}

	return &Resolution{TransactionRef: ref, Source: "app-params"}, nil
}

func resolveGatewayParams(_ context.Context, params url.Values, _ SnapshotReader) (*Resolution, error) {
	code := params.Get(gwParamResponseCode)
	ref := params.Get(gwParamTxnRef)
	if code == "" || ref == "" {
		return nil, nil
	}

	if code != gwCodeApproved {
		return nil, &DeclinedError{
			TransactionRef: ref,
			Code:           code,
			Message:        fmt.Sprintf("gateway declined (bank=%s, status=%s)", params.Get(gwParamBankCode), params.Get(gwParamTxnStatus)),
		}
	}

	return &Resolution{TransactionRef: ref, Source: "gateway-params"}, nil
}

func resolvePendingSnapshot(ctx context.Context, _ url.Values, store SnapshotReader) (*Resolution, error) {
	if store == nil {
		return nil, nil
	}
	snap, err := store.PendingSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return &Resolution{TransactionRef: snap.TransactionRef, Source: "pending-snapshot"}, nil
}

// resolveLastReference covers the case where a newer snapshot shadows the
// flow that actually came back: it follows the last reference any initiation
// recorded, but only while that reference's own snapshot is still inside its
// recovery window.
func resolveLastReference(ctx context.Context, _ url.Values, store SnapshotReader) (*Resolution, error) {
	if store == nil {
		return nil, nil
	}
	ref, err := store.LastReference(ctx)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, nil
	}
	snap, err := store.GetSnapshot(ctx, ref)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		// Reference recorded but its window has passed; nothing safe to do.
		return nil, nil
	}
	return &Resolution{TransactionRef: ref, Source: "last-reference"}, nil
}
