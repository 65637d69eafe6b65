package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/keylock"
	"nexus-delivery/internal/pkg/txn"
	paymentdomain "nexus-delivery/internal/service/payment/domain"
	"nexus-delivery/internal/service/wallet/domain"
	"nexus-delivery/internal/service/wallet/infrastructure"
)

type fakeGateway struct {
	mu        sync.Mutex
	createErr error
	status    paymentdomain.IntentStatus
	paid      decimal.Decimal
	created   []paymentdomain.IntentRequest
}

func (g *fakeGateway) CreateIntent(_ context.Context, req paymentdomain.IntentRequest) (*paymentdomain.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	return &paymentdomain.Intent{OrderCode: req.OrderCode, Amount: req.Amount, CheckoutURL: "https://pay.example/c"}, nil
}

func (g *fakeGateway) VerifyIntent(_ context.Context, code int64) (*paymentdomain.Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &paymentdomain.Verification{OrderCode: code, Status: g.status, SettledAmount: g.paid}, nil
}

type fakeNotifier struct {
	completed atomic.Int32
	failed    atomic.Int32
}

func (n *fakeNotifier) TopUpCompleted(context.Context, string, decimal.Decimal, decimal.Decimal) {
	n.completed.Add(1)
}

func (n *fakeNotifier) TopUpFailed(context.Context, string, int64) {
	n.failed.Add(1)
}

type fixture struct {
	svc      *LedgerService
	repo     *infrastructure.MemoryWalletRepository
	gateway  *fakeGateway
	notifier *fakeNotifier
}

func newFixture() *fixture {
	repo := infrastructure.NewMemoryWalletRepository()
	gw := &fakeGateway{status: paymentdomain.IntentPending}
	n := &fakeNotifier{}
	svc := NewLedgerService(repo, txn.NewMemoryManager(), keylock.New(), gw, n,
		noop.NewTracerProvider().Tracer("test"), LedgerConfig{Currency: "VND", IntentTTL: 15 * time.Minute})
	return &fixture{svc: svc, repo: repo, gateway: gw, notifier: n}
}

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func (f *fixture) funded(t *testing.T, userID string, amount int64) *domain.Wallet {
	t.Helper()
	w, err := f.svc.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	if amount > 0 {
		_, err = f.svc.Credit(context.Background(), w.ID, d(amount), domain.TxDeposit, "seed", "")
		require.NoError(t, err)
	}
	return w
}

func (f *fixture) assertConsistent(t *testing.T, walletID string) {
	t.Helper()
	rec, err := f.svc.Reconcile(context.Background(), walletID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent, "balance %s ledger %s", rec.Balance, rec.LedgerTotal)
	assert.False(t, rec.Balance.IsNegative())
}

func TestGetBalanceUnknownUser(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GetBalance(context.Background(), "nobody")
	assert.True(t, errors.Is(err, apperr.ErrWalletNotFound))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	f := newFixture()
	a, err := f.svc.GetOrCreate(context.Background(), "u-1")
	require.NoError(t, err)
	b, err := f.svc.GetOrCreate(context.Background(), "u-1")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.True(t, b.Balance.IsZero())
	assert.Equal(t, "VND", b.Currency)
}

func TestCreditAndDebit(t *testing.T) {
	f := newFixture()
	w := f.funded(t, "u-1", 200000)

	tx, err := f.svc.Debit(context.Background(), w.ID, d(105000), domain.TxPayment, "order FD1", "o-1")
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(d(-105000)))
	assert.Equal(t, "o-1", tx.ReferenceOrderID)

	got, err := f.svc.GetBalance(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(d(95000)))
	f.assertConsistent(t, w.ID)
}

func TestDebitInsufficientBalanceLeavesNoTrace(t *testing.T) {
	f := newFixture()
	w := f.funded(t, "u-1", 50000)

	_, err := f.svc.Debit(context.Background(), w.ID, d(50001), domain.TxWithdraw, "withdraw", "")
	assert.True(t, errors.Is(err, apperr.ErrInsufficientBalance))

	history, err := f.svc.History(context.Background(), "u-1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	f.assertConsistent(t, w.ID)
}

func TestAmountAndTypeValidation(t *testing.T) {
	f := newFixture()
	w := f.funded(t, "u-1", 1000)
	ctx := context.Background()

	_, err := f.svc.Credit(ctx, w.ID, d(0), domain.TxDeposit, "", "")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
	_, err = f.svc.Debit(ctx, w.ID, d(-5), domain.TxPayment, "", "")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
	_, err = f.svc.Credit(ctx, w.ID, d(5), domain.TxPayment, "", "")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
	_, err = f.svc.Debit(ctx, "missing", d(5), domain.TxPayment, "", "")
	assert.True(t, errors.Is(err, apperr.ErrWalletNotFound))
}

func TestConcurrentFullBalanceDebitsOnlyOneSucceeds(t *testing.T) {
	f := newFixture()
	w := f.funded(t, "u-1", 100000)

	const n = 20
	var ok, insufficient atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Debit(context.Background(), w.ID, d(100000), domain.TxPayment, "race", "")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperr.ErrInsufficientBalance):
				insufficient.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, n-1, insufficient.Load())
	got, err := f.svc.GetBalance(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	f.assertConsistent(t, w.ID)
}

func TestDebitForOrder(t *testing.T) {
	f := newFixture()
	f.funded(t, "u-1", 100000)

	paid, err := f.svc.DebitForOrder(context.Background(), "u-1", d(60000), "order", "o-1")
	require.NoError(t, err)
	assert.True(t, paid)

	paid, err = f.svc.DebitForOrder(context.Background(), "u-1", d(60000), "order", "o-2")
	require.NoError(t, err)
	assert.False(t, paid)

	paid, err = f.svc.DebitForOrder(context.Background(), "no-wallet", d(1), "order", "o-3")
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestRequestTopUpCreatesPendingPlaceholder(t *testing.T) {
	f := newFixture()

	res, err := f.svc.RequestTopUp(context.Background(), "u-1", d(50000))
	require.NoError(t, err)
	assert.NotZero(t, res.ExternalCode)
	assert.Equal(t, res.ExternalCode, res.Payment.OrderCode)
	require.Len(t, f.gateway.created, 1)
	assert.True(t, f.gateway.created[0].Amount.Equal(d(50000)))

	tx, err := f.repo.FindTransactionByExternalCode(context.Background(), res.ExternalCode)
	require.NoError(t, err)
	assert.Equal(t, domain.TxPending, tx.Status)
	assert.True(t, tx.Amount.IsZero())

	w, err := f.svc.GetBalance(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	f.assertConsistent(t, w.ID)
}

func TestRequestTopUpGatewayFailureMarksPlaceholderFailed(t *testing.T) {
	f := newFixture()
	f.gateway.createErr = apperr.Gateway("timeout")

	_, err := f.svc.RequestTopUp(context.Background(), "u-1", d(50000))
	assert.True(t, errors.Is(err, apperr.ErrGatewayUnavailable))

	history, err := f.svc.History(context.Background(), "u-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TxFailed, history[0].Status)

	applied, err := f.svc.SettleDeposit(context.Background(), history[0].ExternalCode, d(50000))
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestSettleDepositAppliesExactlyOnce(t *testing.T) {
	f := newFixture()
	res, err := f.svc.RequestTopUp(context.Background(), "u-1", d(50000))
	require.NoError(t, err)

	first, err := f.svc.SettleDeposit(context.Background(), res.ExternalCode, d(50000))
	require.NoError(t, err)
	second, err := f.svc.SettleDeposit(context.Background(), res.ExternalCode, d(50000))
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	w, err := f.svc.GetBalance(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d(50000)))
	f.assertConsistent(t, w.ID)
}

func TestConcurrentSettlementCreditsOnce(t *testing.T) {
	f := newFixture()
	res, err := f.svc.RequestTopUp(context.Background(), "u-1", d(70000))
	require.NoError(t, err)

	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.svc.SettleDeposit(context.Background(), res.ExternalCode, d(70000))
			if assert.NoError(t, err) && ok {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, applied.Load())
	w, err := f.svc.GetBalance(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d(70000)))
}

func TestUnknownDepositCodeIsNotApplied(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ok, err := f.svc.SettleDeposit(ctx, 42, d(1))
	require.NoError(t, err)
	assert.False(t, ok)

	f.gateway.status, f.gateway.paid = paymentdomain.IntentPaid, d(1)
	ok, err = f.svc.ConfirmTopUp(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.GetBalance(ctx, "u-1")
	assert.True(t, errors.Is(err, apperr.ErrWalletNotFound), "nothing was credited")
}

func TestConfirmTopUp(t *testing.T) {
	f := newFixture()
	res, err := f.svc.RequestTopUp(context.Background(), "u-1", d(30000))
	require.NoError(t, err)

	applied, err := f.svc.ConfirmTopUp(context.Background(), res.ExternalCode)
	require.NoError(t, err)
	assert.False(t, applied, "pending intent must not settle")

	f.gateway.status = paymentdomain.IntentPaid
	f.gateway.paid = d(30000)
	applied, err = f.svc.ConfirmTopUp(context.Background(), res.ExternalCode)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = f.svc.ConfirmTopUp(context.Background(), res.ExternalCode)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.EqualValues(t, 1, f.notifier.completed.Load())

	w, err := f.svc.GetBalance(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d(30000)))
}

func TestConfirmTopUpExpiredClosesPlaceholder(t *testing.T) {
	f := newFixture()
	res, err := f.svc.RequestTopUp(context.Background(), "u-1", d(30000))
	require.NoError(t, err)
	f.gateway.status = paymentdomain.IntentExpired

	applied, err := f.svc.ConfirmTopUp(context.Background(), res.ExternalCode)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.EqualValues(t, 1, f.notifier.failed.Load())

	tx, err := f.repo.FindTransactionByExternalCode(context.Background(), res.ExternalCode)
	require.NoError(t, err)
	assert.Equal(t, domain.TxFailed, tx.Status)
}

func TestPendingDepositCodes(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.svc.cfg.Now = func() time.Time { return now.Add(-10 * time.Minute) }
	old, err := f.svc.RequestTopUp(context.Background(), "u-1", d(1000))
	require.NoError(t, err)
	f.svc.cfg.Now = func() time.Time { return now }
	_, err = f.svc.RequestTopUp(context.Background(), "u-1", d(1000))
	require.NoError(t, err)

	codes, err := f.svc.PendingDepositCodes(context.Background(), 5*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{old.ExternalCode}, codes)

	has, err := f.svc.HasDeposit(context.Background(), old.ExternalCode)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = f.svc.HasDeposit(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRefundOrderCreatesWallet(t *testing.T) {
	f := newFixture()
	tx, err := f.svc.RefundOrder(context.Background(), "u-2", d(105000), "refund", "o-9")
	require.NoError(t, err)
	assert.Equal(t, domain.TxRefund, tx.Type)

	w, err := f.svc.GetBalance(context.Background(), "u-2")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d(105000)))
}
