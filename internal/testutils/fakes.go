// Package testutils provides in-memory stand-ins for Postgres and the quote
// API so handlers and trading rules can be tested without infrastructure.
package testutils

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atharvakonge/papertrade/internal/logging"
	"github.com/atharvakonge/papertrade/internal/models"
	"github.com/atharvakonge/papertrade/internal/quote"
	"github.com/atharvakonge/papertrade/internal/trading"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrInjected is returned by MemoryLedger after SetFailRecord(true)
var ErrInjected = errors.New("injected failure")

// MemoryLedger implements trading.Ledger and auth.UserStore in memory.
// WithAccount works on a copy and only publishes it when fn succeeds, which
// mirrors the commit/rollback behaviour of the Postgres store.
type MemoryLedger struct {
	mu     sync.Mutex
	users  map[int64]models.User
	rows   []models.Transaction
	nextID int64
	rowID  int64

	failRecord bool
}

var _ trading.Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{users: make(map[int64]models.User)}
}

// AddUser inserts a user directly and returns its id
func (m *MemoryLedger) AddUser(username string, cash decimal.Decimal) int64 {
	id, err := m.CreateUser(context.Background(), username, "", cash)
	if err != nil {
		panic(err)
	}
	return id
}

func (m *MemoryLedger) CreateUser(_ context.Context, username, hash string, cash decimal.Decimal) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return 0, models.ErrUsernameTaken
		}
	}
	m.nextID++
	m.users[m.nextID] = models.User{
		ID:        m.nextID,
		Username:  username,
		Hash:      hash,
		Cash:      cash,
		CreatedAt: time.Now(),
	}
	return m.nextID, nil
}

func (m *MemoryLedger) UserByUsername(_ context.Context, username string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, models.ErrUserNotFound
}

func (m *MemoryLedger) Cash(_ context.Context, userID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return decimal.Zero, models.ErrUserNotFound
	}
	return u.Cash, nil
}

func (m *MemoryLedger) Holdings(_ context.Context, userID int64) ([]models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := make(map[string]int64)
	for _, r := range m.rows {
		if r.UserID == userID {
			sums[r.Symbol] += r.Shares
		}
	}
	holdings := make([]models.Holding, 0, len(sums))
	for symbol, shares := range sums {
		if shares != 0 {
			holdings = append(holdings, models.Holding{Symbol: symbol, Shares: shares})
		}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings, nil
}

func (m *MemoryLedger) History(_ context.Context, userID int64) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := make([]models.Transaction, 0)
	for _, r := range m.rows {
		if r.UserID == userID {
			history = append(history, r)
		}
	}
	return history, nil
}

// SetFailRecord makes Record fail after cash was adjusted, to exercise rollback
func (m *MemoryLedger) SetFailRecord(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRecord = fail
}

// Rows returns a copy of every ledger row
func (m *MemoryLedger) Rows() []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Transaction(nil), m.rows...)
}

// WithAccount holds the ledger mutex for the whole callback, like the row lock
func (m *MemoryLedger) WithAccount(_ context.Context, userID int64, fn func(trading.Account) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	acct := &memAccount{ledger: m, user: u}
	if err := fn(acct); err != nil {
		return err // pending changes dropped
	}
	m.users[userID] = acct.user
	m.rows = append(m.rows, acct.pending...)
	return nil
}

type memAccount struct {
	ledger  *MemoryLedger
	user    models.User
	pending []models.Transaction
}

func (a *memAccount) UserID() int64         { return a.user.ID }
func (a *memAccount) Cash() decimal.Decimal { return a.user.Cash }

func (a *memAccount) Holding(_ context.Context, symbol string) (int64, error) {
	var held int64
	for _, r := range a.ledger.rows {
		if r.UserID == a.user.ID && r.Symbol == symbol {
			held += r.Shares
		}
	}
	for _, r := range a.pending {
		if r.Symbol == symbol {
			held += r.Shares
		}
	}
	return held, nil
}

func (a *memAccount) AdjustCash(_ context.Context, delta decimal.Decimal) (decimal.Decimal, error) {
	a.user.Cash = a.user.Cash.Add(delta)
	return a.user.Cash, nil
}

func (a *memAccount) Record(_ context.Context, t models.Transaction) (models.Transaction, error) {
	if a.ledger.failRecord {
		return models.Transaction{}, ErrInjected
	}
	a.ledger.rowID++
	t.ID = a.ledger.rowID
	t.UserID = a.user.ID
	t.Timestamp = time.Now()
	a.pending = append(a.pending, t)
	return t, nil
}

// StubQuoter answers lookups from a table; unknown symbols fail
type StubQuoter struct {
	mu     sync.Mutex
	quotes map[string]quote.Quote
	calls  int
}

var _ quote.Quoter = (*StubQuoter)(nil)

func NewStubQuoter() *StubQuoter {
	return &StubQuoter{quotes: make(map[string]quote.Quote)}
}

// SetPrice registers or updates a symbol; price is parsed as a decimal
func (s *StubQuoter) SetPrice(symbol, name, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	symbol = strings.ToUpper(symbol)
	s.quotes[symbol] = quote.Quote{Symbol: symbol, Name: name, Price: decimal.RequireFromString(price)}
}

// Remove makes later lookups of symbol fail
func (s *StubQuoter) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, strings.ToUpper(symbol))
}

func (s *StubQuoter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StubQuoter) Lookup(_ context.Context, symbol string) (quote.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	q, ok := s.quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return quote.Quote{}, quote.ErrUnknownSymbol
	}
	return q, nil
}

// Logger returns a silent entry
func Logger() *logrus.Entry {
	return logrus.NewEntry(logging.Discard())
}

// D parses a decimal literal and fails the test on error
func D(t testing.TB, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// AssertDecimal fails the test unless got equals want numerically
func AssertDecimal(t testing.TB, want string, got decimal.Decimal, what string) {
	t.Helper()
	if !got.Equal(D(t, want)) {
		t.Errorf("Expected %s %s, got %s", what, want, got.String())
	}
}
