package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/txn"
	"nexus-delivery/internal/service/wallet/domain"
)

// MemoryWalletRepository 是进程内实现，配合 txn.MemoryManager 支持回滚。用于测试与本地演示。
type MemoryWalletRepository struct {
	mu      sync.Mutex
	wallets map[string]*domain.Wallet
	byUser  map[string]string
	txs     []*domain.Transaction
}

func NewMemoryWalletRepository() *MemoryWalletRepository {
	return &MemoryWalletRepository{
		wallets: make(map[string]*domain.Wallet),
		byUser:  make(map[string]string),
	}
}

func copyWallet(w *domain.Wallet) *domain.Wallet {
	c := *w
	return &c
}

func copyTx(t *domain.Transaction) *domain.Transaction {
	c := *t
	return &c
}

func (r *MemoryWalletRepository) FindByUserID(_ context.Context, userID string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byUser[userID]
	if !ok {
		return nil, apperr.ErrWalletNotFound
	}
	return copyWallet(r.wallets[id]), nil
}

func (r *MemoryWalletRepository) FindByID(_ context.Context, walletID string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, apperr.ErrWalletNotFound
	}
	return copyWallet(w), nil
}

func (r *MemoryWalletRepository) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[w.UserID]; ok {
		return apperr.ErrDuplicate
	}
	r.wallets[w.ID] = copyWallet(w)
	r.byUser[w.UserID] = w.ID
	txn.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.wallets, w.ID)
		delete(r.byUser, w.UserID)
	})
	return nil
}

func (r *MemoryWalletRepository) AdjustBalance(ctx context.Context, walletID string, delta decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return apperr.ErrWalletNotFound
	}
	next := w.Balance.Add(delta)
	if next.IsNegative() {
		return apperr.ErrInsufficientBalance
	}
	w.Balance = next
	w.UpdatedAt = time.Now()
	txn.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		w.Balance = w.Balance.Sub(delta)
	})
	return nil
}

func (r *MemoryWalletRepository) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.ExternalCode != 0 {
		for _, existing := range r.txs {
			if existing.ExternalCode == tx.ExternalCode {
				return apperr.ErrDuplicate
			}
		}
	}
	stored := copyTx(tx)
	r.txs = append(r.txs, stored)
	txn.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, t := range r.txs {
			if t == stored {
				r.txs = append(r.txs[:i], r.txs[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *MemoryWalletRepository) FindTransactionByExternalCode(_ context.Context, code int64) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txs {
		if t.ExternalCode == code {
			return copyTx(t), nil
		}
	}
	return nil, apperr.NotFound("transaction with external code %d not found", code)
}

func (r *MemoryWalletRepository) casStatus(ctx context.Context, txID string, to domain.TxStatus, amount *decimal.Decimal, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txs {
		if t.ID != txID {
			continue
		}
		if t.Status != domain.TxPending {
			return false, nil
		}
		prevAmount := t.Amount
		t.Status = to
		t.SettledAt = &at
		if amount != nil {
			t.Amount = *amount
		}
		txn.OnRollback(ctx, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			t.Status = domain.TxPending
			t.SettledAt = nil
			t.Amount = prevAmount
		})
		return true, nil
	}
	return false, apperr.NotFound("transaction %s not found", txID)
}

func (r *MemoryWalletRepository) SettleTransaction(ctx context.Context, txID string, amount decimal.Decimal, at time.Time) (bool, error) {
	return r.casStatus(ctx, txID, domain.TxSuccess, &amount, at)
}

func (r *MemoryWalletRepository) FailTransaction(ctx context.Context, txID string, at time.Time) (bool, error) {
	return r.casStatus(ctx, txID, domain.TxFailed, nil, at)
}

func (r *MemoryWalletRepository) SumAmounts(_ context.Context, walletID string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, t := range r.txs {
		if t.WalletID == walletID {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func (r *MemoryWalletRepository) ListTransactions(_ context.Context, walletID string, limit int) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for i := len(r.txs) - 1; i >= 0; i-- {
		if r.txs[i].WalletID == walletID {
			out = append(out, copyTx(r.txs[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryWalletRepository) ListPendingDeposits(_ context.Context, createdBefore time.Time, limit int) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, t := range r.txs {
		if t.Type == domain.TxDeposit && t.Status == domain.TxPending && t.CreatedAt.Before(createdBefore) {
			out = append(out, copyTx(t))
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
