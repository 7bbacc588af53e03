package payment_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/gateway"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/payment"
)

type MockAPIClient struct {
	mock.Mock
}

func (m *MockAPIClient) Do(ctx context.Context, method, path string, body, out interface{}) error {
	args := m.Called(ctx, method, path, body, out)
	return args.Error(0)
}

type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) SaveSnapshot(ctx context.Context, snap models.RecoverySnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func testOrder() *models.Order {
	return &models.Order{
		OrderID:        "order-1",
		ShowtimeID:     "show-1",
		TransactionRef: "TXN-1",
		Total:          160000,
		Status:         models.OrderPending,
	}
}

func testBooking() *models.Booking {
	return &models.Booking{
		BookingID:  "booking-1",
		OrderID:    "order-1",
		ShowtimeID: "show-1",
		Status:     models.BookingPending,
	}
}

func respondWithRedirect(url string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		raw, _ := json.Marshal(map[string]string{"redirect_url": url})
		_ = json.Unmarshal(raw, args.Get(4))
	}
}

func TestInitiate_WritesSnapshotBeforeReturningURL(t *testing.T) {
	api := new(MockAPIClient)
	store := new(MockSnapshotStore)

	api.On("Do", mock.Anything, "POST", "/payments/initiate", mock.Anything, mock.Anything).
		Run(respondWithRedirect("https://gateway.example/pay?ref=TXN-1")).Return(nil)
	store.On("SaveSnapshot", mock.Anything, mock.MatchedBy(func(snap models.RecoverySnapshot) bool {
		return snap.TransactionRef == "TXN-1" &&
			snap.BookingID == "booking-1" &&
			snap.Amount == 160000 &&
			snap.ExpiresAt.After(snap.CreatedAt)
	})).Return(nil)

	init := payment.NewInitiator(api, store, "http://localhost:8081/payment/return", "http://localhost:8081/payment/cancel", 30*time.Minute, nil)
	url, err := init.Initiate(context.Background(), testOrder(), testBooking(), "Inception", []string{"A1", "A2"}, "gateway")
	require.NoError(t, err)
	assert.Contains(t, url, "TXN-1")
	store.AssertExpectations(t)
}

func TestInitiate_GatewayUnavailable(t *testing.T) {
	api := new(MockAPIClient)
	store := new(MockSnapshotStore)

	api.On("Do", mock.Anything, "POST", "/payments/initiate", mock.Anything, mock.Anything).
		Return(gateway.ErrUnavailable)

	init := payment.NewInitiator(api, store, "return", "cancel", time.Minute, nil)
	_, err := init.Initiate(context.Background(), testOrder(), testBooking(), "Inception", nil, "gateway")
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)

	// No URL means no redirect, so there is nothing to recover from.
	store.AssertNotCalled(t, "SaveSnapshot", mock.Anything, mock.Anything)
}

func TestInitiate_EmptyRedirectURL(t *testing.T) {
	api := new(MockAPIClient)
	store := new(MockSnapshotStore)

	api.On("Do", mock.Anything, "POST", "/payments/initiate", mock.Anything, mock.Anything).Return(nil)

	init := payment.NewInitiator(api, store, "return", "cancel", time.Minute, nil)
	_, err := init.Initiate(context.Background(), testOrder(), testBooking(), "Inception", nil, "gateway")
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
}

func TestInitiate_SnapshotWriteFailureBlocksRedirect(t *testing.T) {
	api := new(MockAPIClient)
	store := new(MockSnapshotStore)

	api.On("Do", mock.Anything, "POST", "/payments/initiate", mock.Anything, mock.Anything).
		Run(respondWithRedirect("https://gateway.example/pay")).Return(nil)
	store.On("SaveSnapshot", mock.Anything, mock.Anything).Return(assert.AnError)

	init := payment.NewInitiator(api, store, "return", "cancel", time.Minute, nil)
	url, err := init.Initiate(context.Background(), testOrder(), testBooking(), "Inception", nil, "gateway")
	assert.Error(t, err)
	assert.Empty(t, url, "an unrecoverable redirect must not be handed out")
}
