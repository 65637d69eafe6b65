package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/idgen"
	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/pkg/metrics"
	"nexus-delivery/internal/pkg/txn"
	paymentdomain "nexus-delivery/internal/service/payment/domain"
	"nexus-delivery/internal/service/wallet/domain"
	"nexus-delivery/internal/service/wallet/domain/port"
)

const codeRetries = 3

// LedgerService 是钱包账本的应用服务。所有余额变更都在钱包锁内、单个事务中完成。
type LedgerService struct {
	repo     domain.WalletRepository
	txm      txn.Manager
	locker   port.WalletLocker
	gateway  paymentdomain.Gateway
	notifier port.Notifier
	tracer   trace.Tracer
	cfg      LedgerConfig
}

func NewLedgerService(repo domain.WalletRepository, txm txn.Manager, locker port.WalletLocker, gateway paymentdomain.Gateway, notifier port.Notifier, tracer trace.Tracer, cfg LedgerConfig) *LedgerService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Currency == "" {
		cfg.Currency = "VND"
	}
	return &LedgerService{repo: repo, txm: txm, locker: locker, gateway: gateway, notifier: notifier, tracer: tracer, cfg: cfg}
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// GetBalance 返回用户的钱包，不存在时返回 ErrWalletNotFound。
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (*domain.Wallet, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.GetBalance")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))
	return s.repo.FindByUserID(ctx, userID)
}

// GetOrCreate 返回用户的钱包，必要时创建一个余额为 0 的新钱包。
func (s *LedgerService) GetOrCreate(ctx context.Context, userID string) (*domain.Wallet, error) {
	if userID == "" {
		return nil, apperr.Invalid("user id is required")
	}
	w, err := s.repo.FindByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, apperr.ErrWalletNotFound) {
		return nil, err
	}

	now := s.cfg.Now()
	w = &domain.Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  s.cfg.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.repo.Create(ctx, w)
	if errors.Is(err, apperr.ErrDuplicate) {
		// 并发创建时另一方已经成功
		return s.repo.FindByUserID(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("user", userID).Str("wallet", w.ID).Msg("👛 wallet created")
	return w, nil
}

// Credit 给钱包入账，type 只能是 DEPOSIT 或 REFUND。
func (s *LedgerService) Credit(ctx context.Context, walletID string, amount decimal.Decimal, txType domain.TxType, description, refOrderID string) (*domain.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Credit")
	defer span.End()

	if txType != domain.TxDeposit && txType != domain.TxRefund {
		return nil, apperr.Invalid("transaction type %q cannot credit a wallet", txType)
	}
	tx, err := s.apply(ctx, walletID, amount, txType, description, refOrderID)
	metrics.RecordWalletOperation("credit", err)
	if err != nil {
		fail(span, err, "credit failed")
	}
	return tx, err
}

// Debit 从钱包扣款，type 只能是 WITHDRAW 或 PAYMENT；余额不足时返回 ErrInsufficientBalance 且不做任何修改。
func (s *LedgerService) Debit(ctx context.Context, walletID string, amount decimal.Decimal, txType domain.TxType, description, refOrderID string) (*domain.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Debit")
	defer span.End()

	if txType != domain.TxWithdraw && txType != domain.TxPayment {
		return nil, apperr.Invalid("transaction type %q cannot debit a wallet", txType)
	}
	tx, err := s.apply(ctx, walletID, amount.Neg(), txType, description, refOrderID)
	metrics.RecordWalletOperation("debit", err)
	if err != nil {
		fail(span, err, "debit failed")
	}
	return tx, err
}

// apply 在钱包锁内，用一个事务完成条件更新余额与追加流水。
func (s *LedgerService) apply(ctx context.Context, walletID string, signed decimal.Decimal, txType domain.TxType, description, refOrderID string) (*domain.Transaction, error) {
	if signed.IsZero() || (txType == domain.TxDeposit || txType == domain.TxRefund) != signed.IsPositive() {
		return nil, apperr.Invalid("amount must be positive")
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("wallet.id", walletID),
		attribute.String("wallet.amount", signed.String()),
		attribute.String("wallet.tx_type", string(txType)),
	)

	unlock, err := s.locker.Lock(ctx, lockKey(walletID))
	if err != nil {
		return nil, errors.Wrap(err, "lock wallet")
	}
	defer unlock()

	now := s.cfg.Now()
	entry := &domain.Transaction{
		ID:               uuid.NewString(),
		WalletID:         walletID,
		Amount:           signed,
		Type:             txType,
		Status:           domain.TxSuccess,
		Description:      description,
		ReferenceOrderID: refOrderID,
		CreatedAt:        now,
		SettledAt:        &now,
	}
	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.AdjustBalance(ctx, walletID, signed); err != nil {
			return err
		}
		return s.repo.AppendTransaction(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("wallet", walletID).Str("amount", signed.String()).Str("type", string(txType)).Msg("ledger entry applied")
	return entry, nil
}

func lockKey(walletID string) string {
	return "wallet-" + walletID
}

// DebitForOrder 按用户扣除订单款项；余额不足或没有钱包时返回 false 而不是错误。
func (s *LedgerService) DebitForOrder(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) (bool, error) {
	w, err := s.repo.FindByUserID(ctx, userID)
	if errors.Is(err, apperr.ErrWalletNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, err = s.Debit(ctx, w.ID, amount, domain.TxPayment, description, orderID)
	if errors.Is(err, apperr.ErrInsufficientBalance) {
		return false, nil
	}
	return err == nil, err
}

// RefundOrder 把订单款项退回用户钱包。
func (s *LedgerService) RefundOrder(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) (*domain.Transaction, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Credit(ctx, w.ID, amount, domain.TxRefund, description, orderID)
}

// RequestTopUp 先记一条金额为 0 的 PENDING 充值占位流水，再向网关申请支付单。
// 网关失败时占位流水置为 FAILED，永远不会被结算。
func (s *LedgerService) RequestTopUp(ctx context.Context, userID string, amount decimal.Decimal) (*TopUpResult, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.RequestTopUp")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("wallet.amount", amount.String()))

	if !amount.IsPositive() {
		return nil, apperr.Invalid("top-up amount must be positive")
	}
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		fail(span, err, "load wallet failed")
		return nil, err
	}

	placeholder, err := s.appendPlaceholder(ctx, w.ID)
	if err != nil {
		fail(span, err, "append placeholder failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("payment.order_code", placeholder.ExternalCode))

	intent, err := s.gateway.CreateIntent(ctx, paymentdomain.IntentRequest{
		OrderCode:   placeholder.ExternalCode,
		Amount:      amount,
		Description: "NAP VI " + userID,
		ExpiresAt:   s.cfg.Now().Add(s.cfg.IntentTTL),
	})
	metrics.RecordWalletOperation("topup_request", err)
	if err != nil {
		fail(span, err, "create intent failed")
		if _, ferr := s.repo.FailTransaction(ctx, placeholder.ID, s.cfg.Now()); ferr != nil {
			logger.Ctx(ctx).Error().Err(ferr).Str("tx", placeholder.ID).Msg("failed to mark deposit placeholder as FAILED")
		}
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("user", userID).Int64("code", placeholder.ExternalCode).Msg("💳 top-up intent created")
	return &TopUpResult{TransactionID: placeholder.ID, ExternalCode: placeholder.ExternalCode, Payment: intent}, nil
}

func (s *LedgerService) appendPlaceholder(ctx context.Context, walletID string) (*domain.Transaction, error) {
	var err error
	for i := 0; i < codeRetries; i++ {
		now := s.cfg.Now()
		placeholder := &domain.Transaction{
			ID:           uuid.NewString(),
			WalletID:     walletID,
			Amount:       decimal.Zero,
			Type:         domain.TxDeposit,
			Status:       domain.TxPending,
			Description:  "Wallet top-up",
			ExternalCode: idgen.PaymentCode(now),
			CreatedAt:    now,
		}
		if err = s.repo.AppendTransaction(ctx, placeholder); err == nil {
			return placeholder, nil
		}
		if !errors.Is(err, apperr.ErrDuplicate) {
			return nil, err
		}
	}
	return nil, errors.Wrap(err, "allocate deposit code")
}

// SettleDeposit 把外部单号对应的 PENDING 充值流水结算为 SUCCESS 并入账。
// 同一单号只会入账一次：第一次返回 true，之后返回 false。
func (s *LedgerService) SettleDeposit(ctx context.Context, externalCode int64, settledAmount decimal.Decimal) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.SettleDeposit")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.order_code", externalCode))

	if !settledAmount.IsPositive() {
		return false, apperr.Invalid("settled amount must be positive")
	}
	placeholder, err := s.findPlaceholder(ctx, externalCode)
	if err != nil || placeholder == nil {
		return false, err
	}
	if placeholder.Type != domain.TxDeposit {
		return false, apperr.Invalid("transaction %s is not a deposit", placeholder.ID)
	}
	if placeholder.Status != domain.TxPending {
		return false, nil
	}

	unlock, err := s.locker.Lock(ctx, lockKey(placeholder.WalletID))
	if err != nil {
		return false, errors.Wrap(err, "lock wallet")
	}
	defer unlock()

	applied := false
	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.SettleTransaction(ctx, placeholder.ID, settledAmount, s.cfg.Now())
		if err != nil || !ok {
			return err
		}
		if err := s.repo.AdjustBalance(ctx, placeholder.WalletID, settledAmount); err != nil {
			return err
		}
		applied = true
		return nil
	})
	metrics.RecordWalletOperation("settle_deposit", err)
	if err != nil {
		fail(span, err, "settle failed")
		return false, err
	}
	span.SetAttributes(attribute.Bool("wallet.settled", applied))
	if applied {
		logger.Ctx(ctx).Info().Int64("code", externalCode).Str("amount", settledAmount.String()).Msg("✅ deposit settled")
	}
	return applied, nil
}

// findPlaceholder 未知单号返回 nil，回调与轮询都按未命中处理
func (s *LedgerService) findPlaceholder(ctx context.Context, externalCode int64) (*domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByExternalCode(ctx, externalCode)
	if errors.Is(err, apperr.ErrNotFound) {
		logger.Ctx(ctx).Warn().Int64("code", externalCode).Msg("no deposit placeholder for external code")
		return nil, nil
	}
	return tx, err
}

// ConfirmTopUp 向网关核实充值单，已支付则结算，终态失败则关闭占位流水。
func (s *LedgerService) ConfirmTopUp(ctx context.Context, externalCode int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ConfirmTopUp")
	defer span.End()

	placeholder, err := s.findPlaceholder(ctx, externalCode)
	if err != nil || placeholder == nil {
		return false, err
	}
	if placeholder.Status != domain.TxPending {
		return false, nil
	}

	v, err := s.gateway.VerifyIntent(ctx, externalCode)
	if err != nil {
		fail(span, err, "verify failed")
		return false, err
	}
	span.SetAttributes(attribute.String("payment.status", string(v.Status)))

	w, err := s.repo.FindByID(ctx, placeholder.WalletID)
	if err != nil {
		return false, err
	}
	switch {
	case v.Status.Settled():
		applied, err := s.SettleDeposit(ctx, externalCode, v.SettledAmount)
		if err != nil || !applied {
			return false, err
		}
		if updated, err := s.repo.FindByID(ctx, w.ID); err == nil {
			s.notifier.TopUpCompleted(ctx, w.UserID, v.SettledAmount, updated.Balance)
		}
		return true, nil
	case v.Status.Terminal():
		failed, err := s.repo.FailTransaction(ctx, placeholder.ID, s.cfg.Now())
		if err != nil {
			return false, err
		}
		if failed {
			logger.Ctx(ctx).Warn().Int64("code", externalCode).Str("status", string(v.Status)).Msg("top-up closed without payment")
			s.notifier.TopUpFailed(ctx, w.UserID, externalCode)
		}
		return false, nil
	default:
		return false, nil
	}
}

// HasDeposit 判断外部单号是否属于充值流水。
func (s *LedgerService) HasDeposit(ctx context.Context, externalCode int64) (bool, error) {
	_, err := s.repo.FindTransactionByExternalCode(ctx, externalCode)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// PendingDepositCodes 返回创建早于 olderThan 且仍未结算的充值单号，供对账轮询使用。
func (s *LedgerService) PendingDepositCodes(ctx context.Context, olderThan time.Duration, limit int) ([]int64, error) {
	txs, err := s.repo.ListPendingDeposits(ctx, s.cfg.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, err
	}
	codes := make([]int64, 0, len(txs))
	for _, t := range txs {
		codes = append(codes, t.ExternalCode)
	}
	return codes, nil
}

// Reconcile 比较钱包余额与流水合计。
func (s *LedgerService) Reconcile(ctx context.Context, walletID string) (*domain.Reconciliation, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Reconcile")
	defer span.End()

	w, err := s.repo.FindByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.SumAmounts(ctx, walletID)
	if err != nil {
		return nil, err
	}
	rec := &domain.Reconciliation{WalletID: walletID, Balance: w.Balance, LedgerTotal: total, Consistent: w.Balance.Equal(total)}
	if !rec.Consistent {
		logger.Ctx(ctx).Error().Str("wallet", walletID).Str("balance", w.Balance.String()).Str("ledger", total.String()).Msg("🚨 wallet ledger out of balance")
	}
	return rec, nil
}

// History 返回用户最近的流水，新的在前。
func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]*domain.Transaction, error) {
	w, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, w.ID, limit)
}
