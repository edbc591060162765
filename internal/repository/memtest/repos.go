// internal/repository/memtest/repos.go
package memtest

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"readreward/internal/domain"
	"readreward/internal/repository"
	"readreward/internal/util"
)

// Users returns the store as a repository.UserRepository.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Contents returns the store as a repository.ContentRepository.
func (s *Store) Contents() repository.ContentRepository { return contentRepo{s} }

// Completions returns the store as a repository.CompletionRepository.
func (s *Store) Completions() repository.CompletionRepository { return completionRepo{s} }

// Transactions returns the store as a repository.TransactionRepository.
func (s *Store) Transactions() repository.TransactionRepository { return transactionRepo{s} }

// Withdrawals returns the store as a repository.WithdrawalRepository.
func (s *Store) Withdrawals() repository.WithdrawalRepository { return withdrawalRepo{s} }

// Stats returns the store as a repository.StatsRepository.
func (s *Store) Stats() repository.StatsRepository { return statsRepo{s} }

// Orders returns the store as a repository.PaymentOrderRepository.
func (s *Store) Orders() repository.PaymentOrderRepository { return orderRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) CreateUser(_ context.Context, _ repository.DBExecutor, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = r.s.newID()
	r.s.st.users[user.ID] = *user
	return nil
}

func (r userRepo) GetUserByID(_ context.Context, _ repository.DBExecutor, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, util.ErrUserNotFound
	}
	return &u, nil
}

func (r userRepo) GetUserForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.User, error) {
	return r.GetUserByID(ctx, q, id)
}

func (r userRepo) UpdateBalance(_ context.Context, _ repository.DBExecutor, id int64, balance, totalEarnings decimal.Decimal, canWithdraw bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[id]
	if !ok {
		return util.ErrUserNotFound
	}
	u.Balance, u.TotalEarnings, u.CanWithdraw, u.UpdatedAt = balance, totalEarnings, canWithdraw, time.Now().UTC()
	r.s.st.users[id] = u
	return nil
}

func (r userRepo) UpgradePlan(_ context.Context, _ repository.DBExecutor, id int64, plan domain.Plan) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[id]
	if !ok || u.Plan == plan {
		return false, nil
	}
	u.Plan, u.UpdatedAt = plan, time.Now().UTC()
	r.s.st.users[id] = u
	return true, nil
}

type contentRepo struct{ s *Store }

func (r contentRepo) GetContentByID(_ context.Context, _ repository.DBExecutor, id int64) (*domain.Content, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.contents[id]
	if !ok || !c.Active {
		return nil, util.ErrContentNotFound
	}
	return &c, nil
}

type completionRepo struct{ s *Store }

func (r completionRepo) CreateCompletion(_ context.Context, _ repository.DBExecutor, c *domain.Completion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.completions {
		if existing.UserID == c.UserID && existing.ContentID == c.ContentID {
			return util.ErrAlreadyCompleted
		}
	}
	c.ID = r.s.newID()
	r.s.st.completions = append(r.s.st.completions, *c)
	return nil
}

func (r completionRepo) ExistsForUserAndContent(_ context.Context, _ repository.DBExecutor, userID, contentID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.st.completions {
		if c.UserID == userID && c.ContentID == contentID {
			return true, nil
		}
	}
	return false, nil
}

func (r completionRepo) CountByUser(ctx context.Context, q repository.DBExecutor, userID int64) (int, error) {
	list, _ := r.ListByUser(ctx, q, userID)
	return len(list), nil
}

func (r completionRepo) ListByUser(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.Completion, error) {
	return r.ListByUserAfterID(ctx, q, userID, 0)
}

func (r completionRepo) ListByUserAfterID(_ context.Context, _ repository.DBExecutor, userID, afterID int64) ([]domain.Completion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Completion{}
	for _, c := range r.s.st.completions {
		if c.UserID == userID && c.ID > afterID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type transactionRepo struct{ s *Store }

func (r transactionRepo) CreateTransaction(_ context.Context, _ repository.DBExecutor, tx *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.FailNextTransactionInsert; err != nil {
		r.s.FailNextTransactionInsert = nil
		return err
	}
	tx.ID = r.s.newID()
	r.s.st.transactions = append(r.s.st.transactions, *tx)
	return nil
}

func (r transactionRepo) byUser(userID int64) []domain.Transaction {
	out := []domain.Transaction{}
	for _, t := range r.s.st.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (r transactionRepo) GetTransactionsByUserID(_ context.Context, _ repository.DBExecutor, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.byUser(userID)
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Transaction{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r transactionRepo) GetLatestByUserID(_ context.Context, _ repository.DBExecutor, userID int64) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.byUser(userID)
	if len(all) == 0 {
		return nil, util.ErrNotFound
	}
	latest := all[0]
	for _, t := range all[1:] {
		if t.ID > latest.ID {
			latest = t
		}
	}
	return &latest, nil
}

func (r transactionRepo) SumByUserID(_ context.Context, _ repository.DBExecutor, userID int64) (*repository.LedgerTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	totals := &repository.LedgerTotals{Sum: decimal.Zero}
	for _, t := range r.byUser(userID) {
		totals.Sum = totals.Sum.Add(t.Amount)
		totals.Entries++
	}
	return totals, nil
}

func (r transactionRepo) SumEarningsSince(_ context.Context, _ repository.DBExecutor, userID int64, since time.Time) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, t := range r.byUser(userID) {
		if t.Kind == domain.TransactionKindEarning && !t.CreatedAt.Before(since) {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

type withdrawalRepo struct{ s *Store }

func (r withdrawalRepo) CreateWithdrawal(_ context.Context, _ repository.DBExecutor, w *domain.Withdrawal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.withdrawals = append(r.s.st.withdrawals, *w)
	return nil
}

type statsRepo struct{ s *Store }

func (r statsRepo) GetStats(_ context.Context, _ repository.DBExecutor, userID int64) (*domain.StatsSnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	snap, ok := r.s.st.stats[userID]
	if !ok {
		return nil, util.ErrNotFound
	}
	return &snap, nil
}

func (r statsRepo) UpsertStats(_ context.Context, _ repository.DBExecutor, snap *domain.StatsSnapshot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.stats[snap.UserID] = *snap
	return nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) CreateOrder(_ context.Context, _ repository.DBExecutor, o *domain.PaymentOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o.ID = r.s.newID()
	r.s.st.orders = append(r.s.st.orders, *o)
	return nil
}

func (r orderRepo) GetByExternalID(_ context.Context, _ repository.DBExecutor, externalID string) (*domain.PaymentOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.st.orders {
		if o.ExternalID == externalID {
			return &o, nil
		}
	}
	return nil, util.ErrOrderNotFound
}

func (r orderRepo) GetByExternalIDForUpdate(ctx context.Context, q repository.DBExecutor, externalID string) (*domain.PaymentOrder, error) {
	return r.GetByExternalID(ctx, q, externalID)
}

func (r orderRepo) TransitionStatus(_ context.Context, _ repository.DBExecutor, id int64, from, to domain.PaymentStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.st.orders {
		if r.s.st.orders[i].ID == id {
			if r.s.st.orders[i].Status != from {
				return false, nil
			}
			r.s.st.orders[i].Status = to
			r.s.st.orders[i].UpdatedAt = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

func (r orderRepo) ListPendingBefore(_ context.Context, _ repository.DBExecutor, cutoff time.Time, limit int) ([]domain.PaymentOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.PaymentOrder{}
	for _, o := range r.s.st.orders {
		if o.Status == domain.PaymentStatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
