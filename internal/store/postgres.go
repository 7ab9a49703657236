package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lvr-auction-hook/auction-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
//
// Expected schema:
//
//	auctions (id TEXT PK, pool_id TEXT, start_time TIMESTAMPTZ, duration INT,
//	          min_bid NUMERIC, status TEXT, winner TEXT, winning_bid NUMERIC,
//	          total_bids INT, mev_recovered NUMERIC, block_number BIGINT,
//	          reveal_deadline TIMESTAMPTZ NULL, revealed_bids INT, seq BIGSERIAL)
//	bids     (bid_id TEXT PK, auction_id TEXT REFERENCES auctions(id),
//	          bidder TEXT, commitment TEXT, amount NUMERIC, ts TIMESTAMPTZ,
//	          revealed BOOLEAN, reveal_nonce TEXT, revealed_at TIMESTAMPTZ NULL)
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const auctionColumns = `id, pool_id, start_time, duration,
       min_bid::TEXT, status, winner, winning_bid::TEXT,
       total_bids, mev_recovered::TEXT, block_number, reveal_deadline,
       revealed_bids`

func (s *PostgresStore) CreateAuction(ctx context.Context, a *model.Auction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auctions (id, pool_id, start_time, duration, min_bid, status,
		                       winner, winning_bid, total_bids, mev_recovered,
		                       block_number, reveal_deadline, revealed_bids)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7, $8::NUMERIC, $9, $10::NUMERIC, $11, $12, $13)`,
		a.ID, a.PoolID, a.StartTime, a.Duration,
		a.MinBid.String(), string(a.Status),
		a.Winner, a.WinningBid.String(), a.TotalBids, a.MEVRecovered.String(),
		a.BlockNumber, nullableTime(a.RevealDeadline), a.RevealedBids,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("auction %s already exists: %w", a.ID, ErrConflict)
	}
	return err
}

func (s *PostgresStore) GetAuction(ctx context.Context, id string) (*model.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)

	a, err := scanAuction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("auction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", id, err)
	}
	return a, nil
}

func (s *PostgresStore) ListAuctions(ctx context.Context, status *model.AuctionStatus, limit, offset int) ([]model.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY seq`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuctions(rows)
}

func (s *PostgresStore) ListPoolAuctions(ctx context.Context, poolID string, limit int) ([]model.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE pool_id = $1 ORDER BY seq DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.pool.Query(ctx, query, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuctions(rows)
}

// UpdateAuction locks the auction row, applies mutate against the
// authoritative record, and commits only if the stored status matched
// expect. A racing transition loses the compare-and-set and surfaces as
// ErrConflict; a mutate error aborts the transaction with no write.
func (s *PostgresStore) UpdateAuction(ctx context.Context, id string, expect model.AuctionStatus, mutate func(*model.Auction) error) (*model.Auction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAuction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("auction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update auction %s: %w", id, err)
	}
	if a.Status != expect {
		return nil, fmt.Errorf("auction %s is %s, expected %s: %w", id, a.Status, expect, ErrConflict)
	}

	if err := mutate(a); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE auctions
		 SET status = $2, winner = $3, winning_bid = $4::NUMERIC,
		     mev_recovered = $5::NUMERIC, reveal_deadline = $6
		 WHERE id = $1`,
		id, string(a.Status), a.Winner, a.WinningBid.String(),
		a.MEVRecovered.String(), nullableTime(a.RevealDeadline),
	); err != nil {
		return nil, fmt.Errorf("update auction %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// AppendBid inserts the bid and bumps the auction's bid count in one
// transaction, holding a row lock so concurrent appends serialize per auction.
func (s *PostgresStore) AppendBid(ctx context.Context, auctionID string, bid *model.Bid) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM auctions WHERE id = $1 FOR UPDATE`, auctionID).
		Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if model.AuctionStatus(status) != model.StatusActive {
		return fmt.Errorf("auction %s is %s, bids require active: %w", auctionID, status, ErrInvalidState)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO bids (bid_id, auction_id, bidder, commitment, amount, ts,
		                   revealed, reveal_nonce, revealed_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7, $8, $9)`,
		bid.BidID, auctionID, bid.Bidder, bid.Commitment,
		bid.Amount.String(), bid.Timestamp, bid.Revealed,
		bid.RevealNonce, nullableTime(bid.RevealedAt),
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE auctions SET total_bids = total_bids + 1 WHERE id = $1`, auctionID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetBid(ctx context.Context, bidID string) (*model.Bid, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT bid_id, auction_id, bidder, commitment, amount::TEXT, ts,
		        revealed, reveal_nonce, revealed_at
		 FROM bids WHERE bid_id = $1`, bidID)

	b, err := scanBid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bid %s: %w", bidID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get bid %s: %w", bidID, err)
	}
	return b, nil
}

func (s *PostgresStore) ListBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, auctionID).
		Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT bid_id, auction_id, bidder, commitment, amount::TEXT, ts,
		        revealed, reveal_nonce, revealed_at
		 FROM bids WHERE auction_id = $1 ORDER BY ts, bid_id`, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *b)
	}
	if bids == nil {
		bids = []model.Bid{}
	}
	return bids, rows.Err()
}

// UpdateBidReveal commits the reveal while holding the owning auction's row
// lock, so the status check, the bid write, and the revealed-bid count bump
// serialize against transitions on the same auction.
func (s *PostgresStore) UpdateBidReveal(ctx context.Context, bidID string, amount decimal.Decimal, nonce string, revealedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var auctionID, status string
	var revealed bool
	err = tx.QueryRow(ctx,
		`SELECT b.auction_id, b.revealed, a.status
		 FROM bids b JOIN auctions a ON a.id = b.auction_id
		 WHERE b.bid_id = $1 FOR UPDATE OF a, b`, bidID).
		Scan(&auctionID, &revealed, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bid %s: %w", bidID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reveal bid %s: %w", bidID, err)
	}
	if revealed {
		return fmt.Errorf("bid %s already revealed: %w", bidID, ErrConflict)
	}
	st := model.AuctionStatus(status)
	if st != model.StatusActive && st != model.StatusRevealing {
		return fmt.Errorf("auction %s is %s, reveals require active or revealing: %w",
			auctionID, status, ErrInvalidState)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE bids
		 SET revealed = TRUE, amount = $2::NUMERIC, reveal_nonce = $3, revealed_at = $4
		 WHERE bid_id = $1`,
		bidID, amount.String(), nonce, revealedAt,
	); err != nil {
		return fmt.Errorf("reveal bid %s: %w", bidID, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE auctions SET revealed_bids = revealed_bids + 1 WHERE id = $1`, auctionID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.AuctionStats, error) {
	stats := &model.AuctionStats{
		CountByStatus:     make(map[model.AuctionStatus]int),
		TotalMEVRecovered: decimal.Zero,
		AverageWinningBid: decimal.Zero,
	}

	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(total_bids), 0)
		 FROM auctions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count, bids int
		if err := rows.Scan(&status, &count, &bids); err != nil {
			return nil, err
		}
		stats.CountByStatus[model.AuctionStatus(status)] = count
		stats.TotalAuctions += count
		stats.TotalBids += bids
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var mevS, avgS string
	err = s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(mev_recovered), 0)::TEXT,
		        COALESCE(ROUND(AVG(winning_bid), 8), 0)::TEXT
		 FROM auctions WHERE status = $1`, string(model.StatusCompleted)).
		Scan(&mevS, &avgS)
	if err != nil {
		return nil, err
	}
	stats.TotalMEVRecovered, _ = decimal.NewFromString(mevS)
	stats.AverageWinningBid, _ = decimal.NewFromString(avgS)

	return stats, nil
}

// --- Scan helpers ---

type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row pgxRow) (*model.Auction, error) {
	var a model.Auction
	var status, minBid, winningBid, mevRecovered string
	var revealDeadline *time.Time

	err := row.Scan(&a.ID, &a.PoolID, &a.StartTime, &a.Duration,
		&minBid, &status, &a.Winner, &winningBid,
		&a.TotalBids, &mevRecovered, &a.BlockNumber, &revealDeadline,
		&a.RevealedBids)
	if err != nil {
		return nil, err
	}

	a.Status = model.AuctionStatus(status)
	a.MinBid, _ = decimal.NewFromString(minBid)
	a.WinningBid, _ = decimal.NewFromString(winningBid)
	a.MEVRecovered, _ = decimal.NewFromString(mevRecovered)
	if revealDeadline != nil {
		a.RevealDeadline = *revealDeadline
	}
	return &a, nil
}

func scanAuctions(rows pgx.Rows) ([]model.Auction, error) {
	auctions := []model.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, *a)
	}
	return auctions, rows.Err()
}

func scanBid(row pgxRow) (*model.Bid, error) {
	var b model.Bid
	var amount string
	var revealedAt *time.Time

	err := row.Scan(&b.BidID, &b.AuctionID, &b.Bidder, &b.Commitment,
		&amount, &b.Timestamp, &b.Revealed, &b.RevealNonce, &revealedAt)
	if err != nil {
		return nil, err
	}

	b.Amount, _ = decimal.NewFromString(amount)
	if revealedAt != nil {
		b.RevealedAt = *revealedAt
	}
	return &b, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
