// Package sqlite provides a SQLite-backed auction ledger implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/gavelworks/auctionhouse/internal/platform/storage/sqlitemigrate"
	"github.com/gavelworks/auctionhouse/internal/services/auction/domain"
	"github.com/gavelworks/auctionhouse/internal/services/auction/storage"
	"github.com/gavelworks/auctionhouse/internal/services/auction/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists the auction ledger in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite ledger store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const auctionColumns = `seq, id, owner, title, description, asset_ref, category,
       start_time, end_time, min_increment,
       highest_bid, highest_bidder, highest_payable_bid,
       ended, cancelled, created_at, updated_at`

// CreateAuction inserts one auction record.
func (s *Store) CreateAuction(ctx context.Context, auction domain.Auction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(auction.ID)
	owner := strings.TrimSpace(auction.Owner)
	title := strings.TrimSpace(auction.Title)
	if id == "" {
		return fmt.Errorf("auction id is required")
	}
	if owner == "" {
		return fmt.Errorf("auction owner is required")
	}
	if title == "" {
		return fmt.Errorf("auction title is required")
	}
	if !auction.StartTime.Before(auction.EndTime) {
		return fmt.Errorf("start time must be before end time")
	}
	if auction.MinIncrement <= 0 {
		return fmt.Errorf("minimum increment must be greater than zero")
	}
	createdAt := auction.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := auction.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO auctions (
		   id, owner, title, description, asset_ref, category,
		   start_time, end_time, min_increment,
		   highest_bid, highest_bidder, highest_payable_bid,
		   ended, cancelled, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', 0, 0, 0, ?, ?)`,
		id,
		owner,
		title,
		auction.Description,
		auction.AssetRef,
		auction.Category,
		toMillis(auction.StartTime),
		toMillis(auction.EndTime),
		auction.MinIncrement,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create auction: %w", err)
	}
	return nil
}

// GetAuction returns one auction by ID.
func (s *Store) GetAuction(ctx context.Context, id string) (domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Auction{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Auction{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Auction{}, fmt.Errorf("auction id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = ?`,
		id,
	)
	auction, err := scanAuction(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Auction{}, storage.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("get auction: %w", err)
	}
	return auction, nil
}

// ListAuctions returns auctions in creation order with offset/limit bounds.
func (s *Store) ListAuctions(ctx context.Context, query storage.ListQuery) ([]domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if query.Limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if query.Offset < 0 {
		return nil, fmt.Errorf("offset must not be negative")
	}

	sqlQuery := `SELECT ` + auctionColumns + ` FROM auctions`
	params := make([]any, 0, len(query.Filter.Params)+2)
	if !query.Filter.Empty() {
		sqlQuery += ` WHERE ` + query.Filter.Clause
		params = append(params, query.Filter.Params...)
	}
	sqlQuery += ` ORDER BY seq ASC LIMIT ? OFFSET ?`
	params = append(params, query.Limit, query.Offset)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	auctions := make([]domain.Auction, 0, query.Limit)
	for rows.Next() {
		auction, err := scanAuction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list auctions: %w", err)
		}
		auctions = append(auctions, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	return auctions, nil
}

// ListBids returns the accepted bid history for one auction, oldest first.
func (s *Store) ListBids(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	auctionID = strings.TrimSpace(auctionID)
	if auctionID == "" {
		return nil, fmt.Errorf("auction id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, auction_id, bidder, amount, payable, created_at
		   FROM bids
		  WHERE auction_id = ?
		  ORDER BY created_at ASC, rowid ASC`,
		auctionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		var bid domain.Bid
		var createdAt int64
		if err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.Bidder, &bid.Amount, &bid.Payable, &createdAt); err != nil {
			return nil, fmt.Errorf("list bids: %w", err)
		}
		bid.CreatedAt = fromMillis(createdAt)
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return bids, nil
}

// CommitBid applies an accepted bid, its history row, and the superseded
// leader's refund in one transaction.
func (s *Store) CommitBid(ctx context.Context, auctionID string, commit storage.BidCommit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	auctionID = strings.TrimSpace(auctionID)
	if auctionID == "" {
		return fmt.Errorf("auction id is required")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(
			ctx,
			`UPDATE auctions
			    SET highest_bid = ?, highest_bidder = ?, highest_payable_bid = ?, updated_at = ?
			  WHERE id = ? AND ended = 0 AND cancelled = 0 AND highest_bid = ?`,
			commit.Outcome.HighestBid,
			commit.Outcome.HighestBidder,
			commit.Outcome.HighestPayableBid,
			toMillis(commit.UpdatedAt),
			auctionID,
			commit.PrevHighestBid,
		)
		if err != nil {
			return fmt.Errorf("update auction leader: %w", err)
		}
		if err := requireOneRow(ctx, tx, result, auctionID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO bids (id, auction_id, bidder, amount, payable, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			commit.Bid.ID,
			auctionID,
			commit.Bid.Bidder,
			commit.Bid.Amount,
			commit.Bid.Payable,
			toMillis(commit.Bid.CreatedAt),
		); err != nil {
			return fmt.Errorf("record bid: %w", err)
		}

		return creditRefund(ctx, tx, commit.Outcome.Refund)
	})
}

// CommitEnd marks an auction ended, records the owner settlement, and credits
// the leader's overpayment refund in one transaction.
func (s *Store) CommitEnd(ctx context.Context, auctionID string, commit storage.EndCommit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	auctionID = strings.TrimSpace(auctionID)
	if auctionID == "" {
		return fmt.Errorf("auction id is required")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(
			ctx,
			`UPDATE auctions SET ended = 1, updated_at = ?
			  WHERE id = ? AND ended = 0 AND cancelled = 0`,
			toMillis(commit.UpdatedAt),
			auctionID,
		)
		if err != nil {
			return fmt.Errorf("mark auction ended: %w", err)
		}
		if err := requireOneRow(ctx, tx, result, auctionID); err != nil {
			return err
		}

		if err := recordPayout(ctx, tx, commit.Payout); err != nil {
			return err
		}
		return creditRefund(ctx, tx, commit.Refund)
	})
}

// CommitCancel marks an auction cancelled and releases the leader's escrow in
// one transaction.
func (s *Store) CommitCancel(ctx context.Context, auctionID string, commit storage.CancelCommit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	auctionID = strings.TrimSpace(auctionID)
	if auctionID == "" {
		return fmt.Errorf("auction id is required")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(
			ctx,
			`UPDATE auctions SET cancelled = 1, updated_at = ?
			  WHERE id = ? AND ended = 0 AND cancelled = 0`,
			toMillis(commit.UpdatedAt),
			auctionID,
		)
		if err != nil {
			return fmt.Errorf("mark auction cancelled: %w", err)
		}
		if err := requireOneRow(ctx, tx, result, auctionID); err != nil {
			return err
		}
		return creditRefund(ctx, tx, commit.Refund)
	})
}

// PendingReturn returns the refund balance owed to an identity.
func (s *Store) PendingReturn(ctx context.Context, identity string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return 0, fmt.Errorf("identity is required")
	}

	var amount int64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT amount FROM pending_returns WHERE identity = ?`, identity)
	if err := row.Scan(&amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get pending return: %w", err)
	}
	return amount, nil
}

// WithdrawPendingReturn zeros the identity's balance and records the payout
// in one transaction. The zero-then-record ordering inside a single
// transaction is what prevents a balance from draining twice.
func (s *Store) WithdrawPendingReturn(ctx context.Context, payout storage.Payout) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	identity := strings.TrimSpace(payout.Recipient)
	if identity == "" {
		return 0, fmt.Errorf("identity is required")
	}

	var amount int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT amount FROM pending_returns WHERE identity = ?`, identity)
		if err := row.Scan(&amount); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				amount = 0
				return nil
			}
			return fmt.Errorf("read pending return: %w", err)
		}
		if amount == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE pending_returns SET amount = 0 WHERE identity = ?`, identity); err != nil {
			return fmt.Errorf("zero pending return: %w", err)
		}

		payout.Amount = amount
		return recordPayout(ctx, tx, payout)
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// Totals summarizes ledger value for conservation auditing.
func (s *Store) Totals(ctx context.Context) (storage.Totals, error) {
	if err := ctx.Err(); err != nil {
		return storage.Totals{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Totals{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT
		  (SELECT COALESCE(SUM(amount), 0) FROM bids),
		  (SELECT COALESCE(SUM(highest_bid), 0) FROM auctions WHERE ended = 0 AND cancelled = 0),
		  (SELECT COALESCE(SUM(amount), 0) FROM pending_returns),
		  (SELECT COALESCE(SUM(amount), 0) FROM payouts)`)

	var totals storage.Totals
	if err := row.Scan(&totals.Deposited, &totals.Escrowed, &totals.PendingReturns, &totals.PaidOut); err != nil {
		return storage.Totals{}, fmt.Errorf("ledger totals: %w", err)
	}
	return totals, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// requireOneRow distinguishes a missing auction from a guarded update that
// lost a race after a guarded UPDATE touched no rows.
func requireOneRow(ctx context.Context, tx *sql.Tx, result sql.Result, auctionID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var one int
	row := tx.QueryRowContext(ctx, `SELECT 1 FROM auctions WHERE id = ?`, auctionID)
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("check auction exists: %w", err)
	}
	return storage.ErrStaleRecord
}

func creditRefund(ctx context.Context, tx *sql.Tx, refund domain.Refund) error {
	if refund.Amount <= 0 || strings.TrimSpace(refund.Identity) == "" {
		return nil
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO pending_returns (identity, amount) VALUES (?, ?)
		 ON CONFLICT(identity) DO UPDATE SET amount = amount + excluded.amount`,
		refund.Identity,
		refund.Amount,
	); err != nil {
		return fmt.Errorf("credit pending return: %w", err)
	}
	return nil
}

func recordPayout(ctx context.Context, tx *sql.Tx, payout storage.Payout) error {
	if payout.Amount <= 0 {
		return nil
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO payouts (id, kind, recipient, auction_id, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		payout.ID,
		string(payout.Kind),
		payout.Recipient,
		payout.AuctionID,
		payout.Amount,
		toMillis(payout.CreatedAt),
	); err != nil {
		return fmt.Errorf("record payout: %w", err)
	}
	return nil
}

func scanAuction(scan func(dest ...any) error) (domain.Auction, error) {
	var auction domain.Auction
	var startTime, endTime, createdAt, updatedAt int64
	var ended, cancelled int
	err := scan(
		&auction.Seq,
		&auction.ID,
		&auction.Owner,
		&auction.Title,
		&auction.Description,
		&auction.AssetRef,
		&auction.Category,
		&startTime,
		&endTime,
		&auction.MinIncrement,
		&auction.HighestBid,
		&auction.HighestBidder,
		&auction.HighestPayableBid,
		&ended,
		&cancelled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Auction{}, err
	}
	auction.StartTime = fromMillis(startTime)
	auction.EndTime = fromMillis(endTime)
	auction.CreatedAt = fromMillis(createdAt)
	auction.UpdatedAt = fromMillis(updatedAt)
	auction.Ended = ended != 0
	auction.Cancelled = cancelled != 0
	return auction, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed")
}

var _ storage.Ledger = (*Store)(nil)
