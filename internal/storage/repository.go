package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrEntryNotFound indicates a wishlist entry does not exist.
	ErrEntryNotFound = errors.New("storage: wishlist entry not found")
)

const (
	upsertItemSQL = `INSERT INTO items (id, query, name)
    VALUES ($1,$2,$3)
    ON CONFLICT (id) DO UPDATE
    SET query = EXCLUDED.query,
        name  = EXCLUDED.name;`

	deleteItemSQL = `DELETE FROM items WHERE id = $1;`

	listItemsSQL = `SELECT id, query, name, created_at FROM items ORDER BY created_at;`

	insertOfferSQL = `INSERT INTO offers (
        item_id, store, seller, price_minor, shipping_minor, tax_rate,
        total_minor, in_stock, rating, review_count, url, captured_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    RETURNING id;`

	insertSnapshotSQL = `INSERT INTO snapshots (
        item_id, source, price_minor, total_minor, annotation, captured_at
    ) VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id;`

	listRecentTotalsSQL = `SELECT total_minor FROM snapshots
    WHERE item_id = $1
    ORDER BY captured_at DESC, id DESC
    LIMIT $2;`

	listRecentSnapshotsSQL = `SELECT id, item_id, source, price_minor, total_minor, annotation, captured_at
    FROM snapshots
    WHERE item_id = $1
    ORDER BY captured_at DESC, id DESC
    LIMIT $2;`

	listSnapshotsBetweenSQL = `SELECT id, item_id, source, price_minor, total_minor, annotation, captured_at
    FROM snapshots
    WHERE item_id = $1
      AND captured_at >= $2
      AND captured_at < $3
    ORDER BY captured_at, id;`

	insertWishlistEntrySQL = `INSERT INTO wishlist_entries (
        user_id, item_id, target_total, drop_percent, priority, notified
    ) VALUES ($1,$2,$3,$4,$5,false)
    ON CONFLICT (user_id, item_id) DO NOTHING;`

	getWishlistEntrySQL = `SELECT user_id, item_id, target_total, drop_percent, priority, notified, created_at
    FROM wishlist_entries
    WHERE user_id = $1 AND item_id = $2;`

	updateWishlistEntrySQL = `UPDATE wishlist_entries
    SET target_total = $3, drop_percent = $4, priority = $5
    WHERE user_id = $1 AND item_id = $2;`

	listWishlistForItemSQL = `SELECT user_id, item_id, target_total, drop_percent, priority, notified, created_at
    FROM wishlist_entries
    WHERE item_id = $1
    ORDER BY created_at;`

	deleteWishlistEntrySQL = `DELETE FROM wishlist_entries WHERE user_id = $1 AND item_id = $2;`

	setNotifiedSQL = `UPDATE wishlist_entries
    SET notified = $4
    WHERE user_id = $1 AND item_id = $2 AND notified = $3;`

	insertAlertSQL = `INSERT INTO alerts (
        user_id, item_id, total_minor, target_total, drop_percent, verdict, channels
    ) VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id, created_at;`

	listRecentAlertsSQL = `SELECT id, user_id, item_id, total_minor, target_total, drop_percent, verdict, channels, created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ItemStore defines operations on tracked items.
type ItemStore interface {
	UpsertItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context) ([]Item, error)
}

// SnapshotStore persists and serves the append-only price history.
type SnapshotStore interface {
	InsertOffer(ctx context.Context, offer OfferRecord) (int64, error)
	InsertSnapshot(ctx context.Context, snap SnapshotRecord) (int64, error)
	ListRecentTotals(ctx context.Context, itemID string, limit int) ([]int64, error)
	ListRecentSnapshots(ctx context.Context, itemID string, limit int) ([]SnapshotRecord, error)
	ListSnapshotsBetween(ctx context.Context, itemID string, from, to time.Time) ([]SnapshotRecord, error)
}

// WishlistStore manages wishlist entries and their notification flags.
type WishlistStore interface {
	EnsureWishlistEntry(ctx context.Context, entry WishlistRecord) (WishlistRecord, error)
	UpdateWishlistEntry(ctx context.Context, entry WishlistRecord) error
	ListWishlistForItem(ctx context.Context, itemID string) ([]WishlistRecord, error)
	DeleteWishlistEntry(ctx context.Context, userID, itemID string) error
	// SetNotified is a compare-and-set on the notification flag. It reports
	// whether this caller won the transition; a loser must not notify.
	SetNotified(ctx context.Context, userID, itemID string, expected, next bool) (bool, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to items, snapshots, wishlists, and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Unlock is best effort; the session drop releases the lock anyway.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertItem creates or updates a tracked item.
func (s *Store) UpsertItem(ctx context.Context, item Item) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertItemSQL, item.ID, item.Query, item.Name); execErr != nil {
		return fmt.Errorf("upsert item: %w", execErr)
	}
	return nil
}

// DeleteItem removes an item; snapshots and wishlist entries cascade.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteItemSQL, id); execErr != nil {
		return fmt.Errorf("delete item: %w", execErr)
	}
	return nil
}

// ListItems lists tracked items in creation order.
func (s *Store) ListItems(ctx context.Context) ([]Item, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listItemsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list items: %w", queryErr)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Query, &item.Name, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// InsertOffer persists a captured offer.
func (s *Store) InsertOffer(ctx context.Context, offer OfferRecord) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var rating interface{}
	if offer.Rating != nil {
		rating = *offer.Rating
	}
	var reviews interface{}
	if offer.ReviewCount != nil {
		reviews = *offer.ReviewCount
	}

	var id int64
	scanErr := pool.QueryRow(ctx, insertOfferSQL,
		offer.ItemID,
		offer.Store,
		offer.Seller,
		offer.PriceMinor,
		offer.ShippingMinor,
		offer.TaxRate.String(),
		offer.TotalMinor,
		offer.InStock,
		rating,
		reviews,
		offer.URL,
		offer.CapturedAt,
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("insert offer: %w", scanErr)
	}
	return id, nil
}

// InsertSnapshot appends a price-history observation. Snapshots are never
// updated; there is deliberately no upsert variant.
func (s *Store) InsertSnapshot(ctx context.Context, snap SnapshotRecord) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var annotation interface{}
	if snap.Annotation != nil {
		annotation = *snap.Annotation
	}

	var id int64
	scanErr := pool.QueryRow(ctx, insertSnapshotSQL,
		snap.ItemID,
		snap.Source,
		snap.PriceMinor,
		snap.TotalMinor,
		annotation,
		snap.CapturedAt,
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("insert snapshot: %w", scanErr)
	}
	return id, nil
}

// ListRecentTotals returns the last limit normalized totals for an item in
// chronological order, ready to feed the statistics window.
func (s *Store) ListRecentTotals(ctx context.Context, itemID string, limit int) ([]int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentTotalsSQL, itemID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent totals: %w", queryErr)
	}
	defer rows.Close()

	totals := make([]int64, 0, limit)
	for rows.Next() {
		var total int64
		if err := rows.Scan(&total); err != nil {
			return nil, err
		}
		totals = append(totals, total)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	// Query is newest-first for the LIMIT; callers want oldest-first.
	for i, j := 0, len(totals)-1; i < j; i, j = i+1, j-1 {
		totals[i], totals[j] = totals[j], totals[i]
	}
	return totals, nil
}

// ListRecentSnapshots lists the most recent snapshots, newest first.
func (s *Store) ListRecentSnapshots(ctx context.Context, itemID string, limit int) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, itemID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows, limit)
}

// ListSnapshotsBetween lists snapshots within a time window, oldest first.
func (s *Store) ListSnapshotsBetween(ctx context.Context, itemID string, from, to time.Time) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, itemID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows, 0)
}

func collectSnapshots(rows pgx.Rows, sizeHint int) ([]SnapshotRecord, error) {
	snaps := make([]SnapshotRecord, 0, sizeHint)
	for rows.Next() {
		var (
			snap       SnapshotRecord
			annotation sql.NullString
		)
		if err := rows.Scan(
			&snap.ID,
			&snap.ItemID,
			&snap.Source,
			&snap.PriceMinor,
			&snap.TotalMinor,
			&annotation,
			&snap.CapturedAt,
		); err != nil {
			return nil, err
		}
		if annotation.Valid {
			value := annotation.String
			snap.Annotation = &value
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// EnsureWishlistEntry creates the entry if absent and returns the stored row.
// A second create for the same (user, item) pair is a no-op that returns the
// existing entry.
func (s *Store) EnsureWishlistEntry(ctx context.Context, entry WishlistRecord) (WishlistRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return WishlistRecord{}, err
	}

	target, drop := wishlistTargets(entry)
	if _, execErr := pool.Exec(ctx, insertWishlistEntrySQL,
		entry.UserID,
		entry.ItemID,
		target,
		drop,
		entry.Priority,
	); execErr != nil {
		return WishlistRecord{}, fmt.Errorf("insert wishlist entry: %w", execErr)
	}

	return s.getWishlistEntry(ctx, entry.UserID, entry.ItemID)
}

// UpdateWishlistEntry replaces the user-editable fields of an entry. The
// notified flag is deliberately untouched; only SetNotified transitions it.
func (s *Store) UpdateWishlistEntry(ctx context.Context, entry WishlistRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	target, drop := wishlistTargets(entry)
	cmdTag, execErr := pool.Exec(ctx, updateWishlistEntrySQL,
		entry.UserID,
		entry.ItemID,
		target,
		drop,
		entry.Priority,
	)
	if execErr != nil {
		return fmt.Errorf("update wishlist entry: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *Store) getWishlistEntry(ctx context.Context, userID, itemID string) (WishlistRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return WishlistRecord{}, err
	}

	row := pool.QueryRow(ctx, getWishlistEntrySQL, userID, itemID)
	entry, scanErr := scanWishlistEntry(row.Scan)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return WishlistRecord{}, ErrEntryNotFound
	}
	if scanErr != nil {
		return WishlistRecord{}, fmt.Errorf("get wishlist entry: %w", scanErr)
	}
	return entry, nil
}

// ListWishlistForItem lists every entry watching an item.
func (s *Store) ListWishlistForItem(ctx context.Context, itemID string) ([]WishlistRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listWishlistForItemSQL, itemID)
	if queryErr != nil {
		return nil, fmt.Errorf("list wishlist entries: %w", queryErr)
	}
	defer rows.Close()

	entries := make([]WishlistRecord, 0)
	for rows.Next() {
		entry, scanErr := scanWishlistEntry(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteWishlistEntry removes an entry on explicit user request.
func (s *Store) DeleteWishlistEntry(ctx context.Context, userID, itemID string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteWishlistEntrySQL, userID, itemID); execErr != nil {
		return fmt.Errorf("delete wishlist entry: %w", execErr)
	}
	return nil
}

// SetNotified performs the compare-and-set transition on the notification
// flag. The WHERE clause carries the expected value so two concurrent passes
// cannot both win the armed->fired transition.
func (s *Store) SetNotified(ctx context.Context, userID, itemID string, expected, next bool) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	cmdTag, execErr := pool.Exec(ctx, setNotifiedSQL, userID, itemID, expected, next)
	if execErr != nil {
		return false, fmt.Errorf("set notified: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	var target interface{}
	if alert.TargetTotal != nil {
		target = *alert.TargetTotal
	}
	var drop interface{}
	if alert.DropPercent != nil {
		drop = alert.DropPercent.String()
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.UserID,
		alert.ItemID,
		alert.TotalMinor,
		target,
		drop,
		alert.Verdict,
		alert.Channels,
	)

	rec := alert
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var (
			rec    AlertRecord
			target sql.NullInt64
			drop   sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.ItemID,
			&rec.TotalMinor,
			&target,
			&drop,
			&rec.Verdict,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if target.Valid {
			value := target.Int64
			rec.TargetTotal = &value
		}
		if drop.Valid {
			value, convErr := decimal.NewFromString(drop.String)
			if convErr != nil {
				return nil, fmt.Errorf("parse drop percent: %w", convErr)
			}
			rec.DropPercent = &value
		}
		alerts = append(alerts, rec)
	}
	return alerts, rows.Err()
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func wishlistTargets(entry WishlistRecord) (interface{}, interface{}) {
	var target interface{}
	if entry.TargetTotal != nil {
		target = *entry.TargetTotal
	}
	var drop interface{}
	if entry.DropPercent != nil {
		drop = entry.DropPercent.String()
	}
	return target, drop
}

func scanWishlistEntry(scan func(dest ...any) error) (WishlistRecord, error) {
	var (
		entry  WishlistRecord
		target sql.NullInt64
		drop   sql.NullString
	)
	if err := scan(
		&entry.UserID,
		&entry.ItemID,
		&target,
		&drop,
		&entry.Priority,
		&entry.Notified,
		&entry.CreatedAt,
	); err != nil {
		return WishlistRecord{}, err
	}
	if target.Valid {
		value := target.Int64
		entry.TargetTotal = &value
	}
	if drop.Valid {
		value, err := decimal.NewFromString(drop.String)
		if err != nil {
			return WishlistRecord{}, fmt.Errorf("parse drop percent: %w", err)
		}
		entry.DropPercent = &value
	}
	return entry, nil
}
