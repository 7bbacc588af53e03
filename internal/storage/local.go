package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/lib/pq"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

// lastReferenceKey is the flow-state key holding the most recently used
// transaction reference. It is the last-resort lookup when the gateway return
// carries nothing and no pending snapshot matches.
const lastReferenceKey = "last_transaction_ref"

type snapshotRow struct {
	bun.BaseModel `bun:"table:recovery_snapshots"`

	TransactionRef string    `bun:"transaction_ref,pk"`
	BookingID      string    `bun:"booking_id,notnull"`
	Amount         int64     `bun:"amount,notnull"`
	Payload        []byte    `bun:"payload,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	ExpiresAt      time.Time `bun:"expires_at,notnull"`
}

type notificationMarker struct {
	bun.BaseModel `bun:"table:notification_markers"`

	BookingID string    `bun:"booking_id,pk"`
	Recipient string    `bun:"recipient"`
	SentAt    time.Time `bun:"sent_at,notnull"`
}

type flowState struct {
	bun.BaseModel `bun:"table:flow_state"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// LocalStore is the storefront's client-local durable state: recovery
// snapshots, the last-used transaction reference, and the exactly-once
// notification markers. SQLite by default, PostgreSQL when configured.
type LocalStore struct {
	Bun *bun.DB
	log *logger.Logger
}

// OpenSQLite opens (or creates) the SQLite-backed local store.
func OpenSQLite(path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// OpenPostgres connects the local store to PostgreSQL.
func OpenPostgres(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres store: %w", err)
	}
	if err := sqldb.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres store: %w", err)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func New(bunDB *bun.DB, log *logger.Logger) *LocalStore {
	return &LocalStore{Bun: bunDB, log: log}
}

// Init creates the tables when they do not exist yet. The PostgreSQL variant
// normally gets its schema from the migrations runner instead.
func (s *LocalStore) Init(ctx context.Context) error {
	for _, model := range []interface{}{
		(*snapshotRow)(nil),
		(*notificationMarker)(nil),
		(*flowState)(nil),
	} {
		if _, err := s.Bun.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create local store table: %w", err)
		}
	}
	return nil
}

// SaveSnapshot writes the snapshot and records its reference as the last one
// used. Saving the same reference twice overwrites, which keeps a retried
// payment initiation from stacking up stale copies.
func (s *LocalStore) SaveSnapshot(ctx context.Context, snap models.RecoverySnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	row := snapshotRow{
		TransactionRef: snap.TransactionRef,
		BookingID:      snap.BookingID,
		Amount:         snap.Amount,
		Payload:        payload,
		CreatedAt:      snap.CreatedAt,
		ExpiresAt:      snap.ExpiresAt,
	}

	_, err = s.Bun.NewInsert().
		Model(&row).
		On("CONFLICT (transaction_ref) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return s.setFlowState(ctx, lastReferenceKey, snap.TransactionRef)
}

// GetSnapshot returns the snapshot for a reference, or nil when absent or
// past its recovery window. Expired rows are left for the sweeper.
func (s *LocalStore) GetSnapshot(ctx context.Context, transactionRef string) (*models.RecoverySnapshot, error) {
	var row snapshotRow
	err := s.Bun.NewSelect().
		Model(&row).
		Where("transaction_ref = ?", transactionRef).
		Limit(1).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap models.RecoverySnapshot
	if err := json.Unmarshal(row.Payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Expired(time.Now()) {
		return nil, nil
	}
	return &snap, nil
}

// PendingSnapshot returns the most recently written unexpired snapshot.
func (s *LocalStore) PendingSnapshot(ctx context.Context) (*models.RecoverySnapshot, error) {
	var row snapshotRow
	err := s.Bun.NewSelect().
		Model(&row).
		Where("expires_at > ?", time.Now()).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending snapshot: %w", err)
	}

	var snap models.RecoverySnapshot
	if err := json.Unmarshal(row.Payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// DeleteSnapshot is idempotent: deleting an absent reference is a no-op, so
// a doubly delivered callback can clean up twice without error.
func (s *LocalStore) DeleteSnapshot(ctx context.Context, transactionRef string) error {
	_, err := s.Bun.NewDelete().
		Model((*snapshotRow)(nil)).
		Where("transaction_ref = ?", transactionRef).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// PurgeExpired removes snapshots past their window. Run periodically.
func (s *LocalStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.Bun.NewDelete().
		Model((*snapshotRow)(nil)).
		Where("expires_at <= ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 && s.log != nil {
		s.log.Info("STORE", fmt.Sprintf("purged %d expired snapshots", n))
	}
	return n, nil
}

// LastReference returns the last transaction reference any payment initiation
// recorded, or empty when none.
func (s *LocalStore) LastReference(ctx context.Context) (string, error) {
	var row flowState
	err := s.Bun.NewSelect().
		Model(&row).
		Where("key = ?", lastReferenceKey).
		Limit(1).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read flow state: %w", err)
	}
	return row.Value, nil
}

// ClearLastReference drops the last-reference key once a flow concludes.
func (s *LocalStore) ClearLastReference(ctx context.Context) error {
	_, err := s.Bun.NewDelete().
		Model((*flowState)(nil)).
		Where("key = ?", lastReferenceKey).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear flow state: %w", err)
	}
	return nil
}

func (s *LocalStore) setFlowState(ctx context.Context, key, value string) error {
	row := flowState{Key: key, Value: value, UpdatedAt: time.Now()}
	_, err := s.Bun.NewInsert().
		Model(&row).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to write flow state: %w", err)
	}
	return nil
}

// MarkNotified inserts the durable exactly-once marker for a booking.
// Returns true only for the first caller; every later call (including after
// a process restart) sees false.
func (s *LocalStore) MarkNotified(ctx context.Context, bookingID, recipient string) (bool, error) {
	row := notificationMarker{
		BookingID: bookingID,
		Recipient: recipient,
		SentAt:    time.Now(),
	}
	res, err := s.Bun.NewInsert().
		Model(&row).
		On("CONFLICT (booking_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to write notification marker: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Notified reports whether a confirmation was already sent for the booking.
func (s *LocalStore) Notified(ctx context.Context, bookingID string) (bool, error) {
	exists, err := s.Bun.NewSelect().
		Model((*notificationMarker)(nil)).
		Where("booking_id = ?", bookingID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read notification marker: %w", err)
	}
	return exists, nil
}

// UnmarkNotified removes the marker so a failed send can be retried. The
// marker is claimed before sending and released on failure; payment state is
// never affected either way.
func (s *LocalStore) UnmarkNotified(ctx context.Context, bookingID string) error {
	_, err := s.Bun.NewDelete().
		Model((*notificationMarker)(nil)).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove notification marker: %w", err)
	}
	return nil
}

func (s *LocalStore) Close() error {
	return s.Bun.Close()
}
