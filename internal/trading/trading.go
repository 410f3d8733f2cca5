// Package trading holds the accounting rules for simulated trades: cost and
// proceeds computation, balance and holding checks, and the atomic
// balance-plus-ledger update.
package trading

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atharvakonge/papertrade/internal/models"
	"github.com/atharvakonge/papertrade/internal/quote"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MaxDeposit caps a single add-cash request
var MaxDeposit = decimal.NewFromInt(1_000_000)

// Account is a user's balance and ledger inside one locked transaction.
// Nothing done through it is visible to others until the transaction commits.
type Account interface {
	UserID() int64
	Cash() decimal.Decimal
	// Holding sums the signed ledger shares of symbol
	Holding(ctx context.Context, symbol string) (int64, error)
	// AdjustCash adds delta (negative to debit) and returns the new balance
	AdjustCash(ctx context.Context, delta decimal.Decimal) (decimal.Decimal, error)
	// Record appends a ledger row and returns it with ID and Timestamp set
	Record(ctx context.Context, t models.Transaction) (models.Transaction, error)
}

// Ledger is the persistence the service needs
type Ledger interface {
	// WithAccount locks the user's row, runs fn and commits if fn returns nil.
	// Any error rolls everything back.
	WithAccount(ctx context.Context, userID int64, fn func(Account) error) error
	Cash(ctx context.Context, userID int64) (decimal.Decimal, error)
	// Holdings returns non-zero net holdings ordered by symbol
	Holdings(ctx context.Context, userID int64) ([]models.Holding, error)
	// History returns ledger rows in insertion order
	History(ctx context.Context, userID int64) ([]models.Transaction, error)
}

// Service executes trades and builds portfolio views
type Service struct {
	ledger Ledger
	quotes quote.Quoter
	locks  *models.UserLocks
	logger *logrus.Entry

	workers int
}

// NewService creates a trading service
func NewService(ledger Ledger, quotes quote.Quoter, logger *logrus.Entry) *Service {
	return &Service{
		ledger: ledger,
		quotes: quotes,
		locks:  models.NewUserLocks(),
		logger: logger,

		workers: DefaultPricingWorkers,
	}
}

// SetPricingWorkers changes how many quotes Portfolio fetches at once
func (s *Service) SetPricingWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// ParseShares validates a share count typed into a form
func ParseShares(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, models.ErrMissingShares
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, models.ErrSharesNotInteger
	}
	if n <= 0 {
		return 0, models.ErrSharesNotPositive
	}
	return n, nil
}

// ParseAmount validates a cash amount typed into a form
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, models.ErrMissingAmount
	}
	amount, err := decimal.NewFromString(s)
	if err != nil || !amount.Equal(amount.Truncate(2)) {
		return decimal.Zero, models.ErrInvalidAmount
	}
	if !amount.IsPositive() || amount.GreaterThan(MaxDeposit) {
		return decimal.Zero, models.ErrAmountRange
	}
	return amount, nil
}

// NormalizeSymbol trims and uppercases a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// tradePrice drops the fractional part of the quote: trades settle at whole
// currency units per share.
func tradePrice(q quote.Quote) decimal.Decimal {
	return q.Price.Truncate(0)
}

// lookup resolves a symbol; every failure is reported as an invalid symbol.
func (s *Service) lookup(ctx context.Context, symbol string) (quote.Quote, error) {
	q, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"symbol": symbol,
		}).WithError(err).Info("quote lookup failed")
		return quote.Quote{}, models.ErrInvalidSymbol
	}
	return q, nil
}

// withAccount takes the in-process user lock before the database row lock
func (s *Service) withAccount(ctx context.Context, userID int64, fn func(Account) error) error {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	return s.ledger.WithAccount(ctx, userID, fn)
}

// Buy purchases shares at the truncated live price
func (s *Service) Buy(ctx context.Context, userID int64, symbol string, shares int64) (models.Transaction, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return models.Transaction{}, models.ErrMissingSymbol
	}
	if shares <= 0 {
		return models.Transaction{}, models.ErrSharesNotPositive
	}

	q, err := s.lookup(ctx, symbol)
	if err != nil {
		return models.Transaction{}, err
	}
	cost := tradePrice(q).Mul(decimal.NewFromInt(shares))

	var recorded models.Transaction
	err = s.withAccount(ctx, userID, func(acct Account) error {
		if cost.GreaterThan(acct.Cash()) {
			return models.ErrInsufficientFunds
		}
		if _, err := acct.AdjustCash(ctx, cost.Neg()); err != nil {
			return fmt.Errorf("debit cash: %w", err)
		}
		t, err := acct.Record(ctx, models.Transaction{
			UserID: userID,
			Symbol: symbol,
			Shares: shares,
			Amount: cost,
			Type:   models.TypeBuy,
		})
		if err != nil {
			return fmt.Errorf("record buy: %w", err)
		}
		recorded = t
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"method":  "Buy",
		"user_id": userID,
		"symbol":  symbol,
		"shares":  shares,
		"cost":    cost.StringFixed(2),
	}).Info("buy executed")
	return recorded, nil
}

// Sell liquidates shares the user holds at the truncated live price
func (s *Service) Sell(ctx context.Context, userID int64, symbol string, shares int64) (models.Transaction, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return models.Transaction{}, models.ErrMissingSymbol
	}
	if shares <= 0 {
		return models.Transaction{}, models.ErrSharesNotPositive
	}

	q, err := s.lookup(ctx, symbol)
	if err != nil {
		return models.Transaction{}, err
	}
	proceeds := tradePrice(q).Mul(decimal.NewFromInt(shares))

	var recorded models.Transaction
	err = s.withAccount(ctx, userID, func(acct Account) error {
		held, err := acct.Holding(ctx, symbol)
		if err != nil {
			return fmt.Errorf("read holding: %w", err)
		}
		if held <= 0 {
			return models.ErrNoHolding
		}
		if shares > held {
			return models.ErrInsufficientShares
		}
		if _, err := acct.AdjustCash(ctx, proceeds); err != nil {
			return fmt.Errorf("credit cash: %w", err)
		}
		t, err := acct.Record(ctx, models.Transaction{
			UserID: userID,
			Symbol: symbol,
			Shares: -shares,
			Amount: proceeds,
			Type:   models.TypeSell,
		})
		if err != nil {
			return fmt.Errorf("record sell: %w", err)
		}
		recorded = t
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"method":   "Sell",
		"user_id":  userID,
		"symbol":   symbol,
		"shares":   shares,
		"proceeds": proceeds.StringFixed(2),
	}).Info("sell executed")
	return recorded, nil
}

// AddCash credits the user's balance. Deposits are not ledger rows.
func (s *Service) AddCash(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.Equal(amount.Truncate(2)) {
		return decimal.Zero, models.ErrInvalidAmount
	}
	if !amount.IsPositive() || amount.GreaterThan(MaxDeposit) {
		return decimal.Zero, models.ErrAmountRange
	}

	var balance decimal.Decimal
	err := s.withAccount(ctx, userID, func(acct Account) error {
		b, err := acct.AdjustCash(ctx, amount)
		if err != nil {
			return fmt.Errorf("credit cash: %w", err)
		}
		balance = b
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.logger.WithFields(logrus.Fields{
		"method":  "AddCash",
		"user_id": userID,
		"amount":  amount.StringFixed(2),
	}).Info("cash added")
	return balance, nil
}

// Cash returns the stored balance
func (s *Service) Cash(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.ledger.Cash(ctx, userID)
}

// Quote looks a symbol up for display
func (s *Service) Quote(ctx context.Context, symbol string) (quote.Quote, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return quote.Quote{}, models.ErrMissingSymbol
	}
	return s.lookup(ctx, symbol)
}

// Portfolio values every non-zero holding at the live price. A symbol whose
// quote cannot be fetched is listed unpriced and left out of the totals.
func (s *Service) Portfolio(ctx context.Context, userID int64) (models.Portfolio, error) {
	holdings, err := s.ledger.Holdings(ctx, userID)
	if err != nil {
		return models.Portfolio{}, fmt.Errorf("load holdings: %w", err)
	}
	cash, err := s.ledger.Cash(ctx, userID)
	if err != nil {
		return models.Portfolio{}, fmt.Errorf("load cash: %w", err)
	}

	p := models.Portfolio{
		Positions: make([]models.Position, 0, len(holdings)),
		Holdings:  decimal.Zero,
		Cash:      cash,
	}
	prices := s.priceHoldings(ctx, holdings)
	for i, h := range holdings {
		pos := models.Position{Symbol: h.Symbol, Name: h.Symbol, Shares: h.Shares}
		q, err := prices[i].quote, prices[i].err
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"method": "Portfolio",
				"symbol": h.Symbol,
			}).WithError(err).Warn("holding left unpriced")
		} else {
			pos.Name = q.Name
			pos.Price = q.Price
			pos.Total = q.Price.Mul(decimal.NewFromInt(h.Shares))
			pos.Priced = true
			p.Holdings = p.Holdings.Add(pos.Total)
		}
		p.Positions = append(p.Positions, pos)
	}
	p.NetWorth = p.Holdings.Add(cash)
	return p, nil
}

// History lists the user's ledger rows in insertion order
func (s *Service) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	return s.ledger.History(ctx, userID)
}

// OwnedSymbols lists the symbols the user can sell
func (s *Service) OwnedSymbols(ctx context.Context, userID int64) ([]string, error) {
	holdings, err := s.ledger.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if h.Shares > 0 {
			symbols = append(symbols, h.Symbol)
		}
	}
	return symbols, nil
}

// IsNotFound reports whether err means the user row is gone
func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrUserNotFound)
}
