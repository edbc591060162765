// internal/repository/memtest/seed.go
package memtest

import (
	"github.com/shopspring/decimal"

	"readreward/internal/domain"
)

// SeedUser adds a user with the given balance and an opening earning entry
// so the ledger invariant holds from the start.
func (s *Store) SeedUser(username string, balance decimal.Decimal, floor decimal.Decimal) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.NewUser(username)
	u.ID = s.newID()
	u.Balance = balance
	u.TotalEarnings = balance
	u.CanWithdraw = domain.CanWithdrawWith(balance, floor)
	s.st.users[u.ID] = *u
	if balance.IsPositive() {
		entry := domain.NewTransaction(u.ID, domain.TransactionKindEarning, balance, decimal.Zero, balance, "seed")
		entry.ID = s.newID()
		s.st.transactions = append(s.st.transactions, *entry)
	}
	return *u
}

// SeedContent adds an active content item.
func (s *Store) SeedContent(title string, reward decimal.Decimal) domain.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := domain.Content{ID: s.newID(), Title: title, Reward: reward, Active: true}
	s.st.contents[c.ID] = c
	return c
}

// DeactivateContent hides a content item from the catalog.
func (s *Store) DeactivateContent(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.st.contents[id]
	c.Active = false
	s.st.contents[id] = c
}

// SeedOrder stores an order as-is.
func (s *Store) SeedOrder(o domain.PaymentOrder) domain.PaymentOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.newID()
	s.st.orders = append(s.st.orders, o)
	return o
}

// SeedCompletion stores a completion without touching the ledger.
func (s *Store) SeedCompletion(c domain.Completion) domain.Completion {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.newID()
	s.st.completions = append(s.st.completions, c)
	return c
}

// SeedTransaction appends a ledger entry without touching the user row.
func (s *Store) SeedTransaction(t domain.Transaction) domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.newID()
	s.st.transactions = append(s.st.transactions, t)
	return t
}

// User returns the committed user row.
func (s *Store) User(id int64) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.users[id]
}

// TransactionsOf returns a user's ledger entries in insertion order.
func (s *Store) TransactionsOf(userID int64) []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Transaction{}
	for _, t := range s.st.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// CompletionsOf returns a user's completions in insertion order.
func (s *Store) CompletionsOf(userID int64) []domain.Completion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Completion{}
	for _, c := range s.st.completions {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

// WithdrawalsOf returns a user's withdrawal requests.
func (s *Store) WithdrawalsOf(userID int64) []domain.Withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Withdrawal{}
	for _, w := range s.st.withdrawals {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out
}

// Order returns the committed order with the given external id.
func (s *Store) Order(externalID string) (domain.PaymentOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.st.orders {
		if o.ExternalID == externalID {
			return o, true
		}
	}
	return domain.PaymentOrder{}, false
}

// DeleteStats drops a cached snapshot.
func (s *Store) DeleteStats(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.stats, userID)
}

// CorruptStats overwrites a cached snapshot.
func (s *Store) CorruptStats(snap domain.StatsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.stats[snap.UserID] = snap
}

// SetBalance overwrites the stored balance without a ledger entry.
func (s *Store) SetBalance(userID int64, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.st.users[userID]
	u.Balance = balance
	s.st.users[userID] = u
}
