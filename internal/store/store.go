package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atharvakonge/papertrade/internal/models"
	"github.com/atharvakonge/papertrade/internal/trading"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// Store is the Postgres-backed user and ledger repository
type Store struct {
	db *sql.DB
}

var _ trading.Ledger = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser inserts a user and returns its id
func (s *Store) CreateUser(ctx context.Context, username, hash string, cash decimal.Decimal) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO users (username, hash, cash) VALUES ($1, $2, $3) RETURNING id",
		username, hash, cash,
	).Scan(&id)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return 0, models.ErrUsernameTaken
	}
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// UserByUsername looks a user up by exact, case-sensitive username
func (s *Store) UserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		"SELECT id, username, hash, cash, created_at FROM users WHERE username = $1",
		username,
	))
}

// UserByID looks a user up by id
func (s *Store) UserByID(ctx context.Context, id int64) (models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		"SELECT id, username, hash, cash, created_at FROM users WHERE id = $1",
		id,
	))
}

func (s *Store) scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Hash, &u.Cash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// Cash returns a user's balance
func (s *Store) Cash(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var cash decimal.Decimal
	err := s.db.QueryRowContext(ctx, "SELECT cash FROM users WHERE id = $1", userID).Scan(&cash)
	if err == sql.ErrNoRows {
		return decimal.Zero, models.ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("select cash: %w", err)
	}
	return cash, nil
}

// Holdings sums the ledger per symbol, leaving out symbols that net to zero
func (s *Store) Holdings(ctx context.Context, userID int64) ([]models.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT symbol, SUM(shares)
        FROM shares
        WHERE user_id = $1
        GROUP BY symbol
        HAVING SUM(shares) <> 0
        ORDER BY symbol
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("select holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]models.Holding, 0)
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.Symbol, &h.Shares); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// History returns every ledger row of the user, oldest first
func (s *Store) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, symbol, shares, amount, transaction_type, timestamp
        FROM shares
        WHERE user_id = $1
        ORDER BY id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	history := make([]models.Transaction, 0)
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.Shares, &t.Amount, &t.Type, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		history = append(history, t)
	}
	return history, rows.Err()
}

// WithAccount runs fn in a transaction holding the user's row lock
// (SELECT ... FOR UPDATE), so concurrent trades of one user queue up even
// across processes.
func (s *Store) WithAccount(ctx context.Context, userID int64, fn func(trading.Account) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	acct := &account{tx: tx, userID: userID}
	err = tx.QueryRowContext(ctx,
		"SELECT cash FROM users WHERE id = $1 FOR UPDATE",
		userID,
	).Scan(&acct.cash)
	if err == sql.ErrNoRows {
		return models.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}

	if err := fn(acct); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// account is a trading.Account bound to an open transaction
type account struct {
	tx     *sql.Tx
	userID int64
	cash   decimal.Decimal
}

func (a *account) UserID() int64         { return a.userID }
func (a *account) Cash() decimal.Decimal { return a.cash }

func (a *account) Holding(ctx context.Context, symbol string) (int64, error) {
	var held int64
	err := a.tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(shares), 0) FROM shares WHERE user_id = $1 AND symbol = $2",
		a.userID, symbol,
	).Scan(&held)
	return held, err
}

func (a *account) AdjustCash(ctx context.Context, delta decimal.Decimal) (decimal.Decimal, error) {
	var cash decimal.Decimal
	err := a.tx.QueryRowContext(ctx,
		"UPDATE users SET cash = cash + $1 WHERE id = $2 RETURNING cash",
		delta, a.userID,
	).Scan(&cash)
	if err != nil {
		return decimal.Zero, err
	}
	a.cash = cash
	return cash, nil
}

func (a *account) Record(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	t.UserID = a.userID
	err := a.tx.QueryRowContext(ctx, `
        INSERT INTO shares (user_id, symbol, shares, amount, transaction_type)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, timestamp
    `, t.UserID, t.Symbol, t.Shares, t.Amount, t.Type).Scan(&t.ID, &t.Timestamp)
	if err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}
