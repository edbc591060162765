// internal/repository/memtest/store.go
// Package memtest provides in-memory repositories for tests. Nothing outside
// _test.go files imports it.
package memtest

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"readreward/internal/domain"
	"readreward/internal/repository"
	"readreward/pkg/db"
)

var errNoSQL = errors.New("memory store does not execute SQL")

// Store is an in-memory implementation of every repository with
// serialised transactions. Begin blocks until the previous transaction
// commits or rolls back, which stands in for the row locks of the real
// database. Rollback restores the state seen at Begin.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state

	// FailNextTransactionInsert makes the next CreateTransaction call fail.
	FailNextTransactionInsert error
}

type state struct {
	nextID       int64
	users        map[int64]domain.User
	contents     map[int64]domain.Content
	completions  []domain.Completion
	transactions []domain.Transaction
	withdrawals  []domain.Withdrawal
	stats        map[int64]domain.StatsSnapshot
	orders       []domain.PaymentOrder
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: state{
		users:    map[int64]domain.User{},
		contents: map[int64]domain.Content{},
		stats:    map[int64]domain.StatsSnapshot{},
	}}
}

func (s state) clone() state {
	c := state{
		nextID:       s.nextID,
		users:        make(map[int64]domain.User, len(s.users)),
		contents:     make(map[int64]domain.Content, len(s.contents)),
		completions:  append([]domain.Completion(nil), s.completions...),
		transactions: append([]domain.Transaction(nil), s.transactions...),
		withdrawals:  append([]domain.Withdrawal(nil), s.withdrawals...),
		stats:        make(map[int64]domain.StatsSnapshot, len(s.stats)),
		orders:       append([]domain.PaymentOrder(nil), s.orders...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.contents {
		c.contents[k] = v
	}
	for k, v := range s.stats {
		c.stats[k] = v
	}
	return c
}

func (s *Store) newID() int64 {
	s.st.nextID++
	return s.st.nextID
}

// Tx is the transaction handle handed out by BeginTx.
type Tx struct {
	store    *Store
	snapshot state
	done     bool
}

// BeginTx matches db.BeginTxFunc.
func (s *Store) BeginTx(ctx context.Context, _ db.DBTxBeginner) (db.TxController, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()
	return &Tx{store: s, snapshot: snapshot}, nil
}

// CommitTx matches db.CommitTxFunc.
func (s *Store) CommitTx(tx db.TxController) error { return tx.Commit() }

// RollbackTx matches db.RollbackTxFunc.
func (s *Store) RollbackTx(tx db.TxController) { _ = tx.Rollback() }

func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.mu.Lock()
	t.store.st = t.snapshot
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func (t *Tx) GetContext(context.Context, interface{}, string, ...interface{}) error { return errNoSQL }
func (t *Tx) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return errNoSQL
}
func (t *Tx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}
func (t *Tx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }

// Executor is the non-transactional handle used for plain reads.
type Executor struct{}

func (Executor) GetContext(context.Context, interface{}, string, ...interface{}) error {
	return errNoSQL
}
func (Executor) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return errNoSQL
}
func (Executor) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}
func (Executor) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }

var (
	_ db.TxController       = (*Tx)(nil)
	_ repository.DBExecutor = (*Tx)(nil)
	_ repository.DBExecutor = Executor{}
)
