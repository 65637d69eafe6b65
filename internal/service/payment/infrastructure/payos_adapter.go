package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/httpclient"
	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/pkg/metrics"
	"nexus-delivery/internal/service/payment/domain"
)

const (
	codeSuccess       = "00"
	maxDescriptionLen = 25
)

// PayOSConfig 是网关凭据与回跳地址。
type PayOSConfig struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	ReturnURL   string
	CancelURL   string
	Timeout     time.Duration
}

// PayOSHTTPAdapter 实现了 domain.Gateway，对接 PayOS 风格的收款 API。
type PayOSHTTPAdapter struct {
	cfg    PayOSConfig
	client *httpclient.Client
	tracer trace.Tracer
}

func NewPayOSHTTPAdapter(cfg PayOSConfig, client *httpclient.Client, tracer trace.Tracer) *PayOSHTTPAdapter {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &PayOSHTTPAdapter{cfg: cfg, client: client, tracer: tracer}
}

type envelope struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

type createRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	BuyerName   string `json:"buyerName,omitempty"`
	CancelURL   string `json:"cancelUrl"`
	ReturnURL   string `json:"returnUrl"`
	ExpiredAt   int64  `json:"expiredAt,omitempty"`
	Signature   string `json:"signature"`
}

type createData struct {
	Bin           string `json:"bin"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	OrderCode     int64  `json:"orderCode"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
}

type infoData struct {
	OrderCode  int64  `json:"orderCode"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amountPaid"`
	Status     string `json:"status"`
}

func (a *PayOSHTTPAdapter) headers() map[string]string {
	return map[string]string{"x-client-id": a.cfg.ClientID, "x-api-key": a.cfg.APIKey}
}

// call 在配置的超时内完成一次请求，任何失败都归为 GatewayUnavailable。
func (a *PayOSHTTPAdapter) call(ctx context.Context, op string, fn func(ctx context.Context) (*envelope, error)) (json.RawMessage, error) {
	start := time.Now()
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	env, err := fn(ctx)
	if err == nil && env.Code != codeSuccess {
		err = fmt.Errorf("gateway rejected %s: %s %s", op, env.Code, env.Desc)
	}
	metrics.ObserveGateway(op, start, err)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("operation", op).Msg("❌ payment gateway call failed")
		return nil, errors.Wrap(apperr.Gateway("%s: %v", op, err), "payos")
	}
	return env.Data, nil
}

// CreateIntent 创建支付单。
func (a *PayOSHTTPAdapter) CreateIntent(ctx context.Context, req domain.IntentRequest) (*domain.Intent, error) {
	ctx, span := a.tracer.Start(ctx, "payos.CreateIntent")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.order_code", req.OrderCode))

	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(0)) {
		return nil, apperr.Invalid("payment amount must be a positive whole number, got %s", req.Amount)
	}
	amount := req.Amount.IntPart()
	description := truncate(req.Description, maxDescriptionLen)
	body := createRequest{
		OrderCode:   req.OrderCode,
		Amount:      amount,
		Description: description,
		BuyerName:   req.BuyerName,
		CancelURL:   a.cfg.CancelURL,
		ReturnURL:   a.cfg.ReturnURL,
		Signature: sign(a.cfg.ChecksumKey, map[string]string{
			"amount":      strconv.FormatInt(amount, 10),
			"cancelUrl":   a.cfg.CancelURL,
			"description": description,
			"orderCode":   strconv.FormatInt(req.OrderCode, 10),
			"returnUrl":   a.cfg.ReturnURL,
		}),
	}
	if !req.ExpiresAt.IsZero() {
		body.ExpiredAt = req.ExpiresAt.Unix()
	}

	raw, err := a.call(ctx, "create_intent", func(ctx context.Context) (*envelope, error) {
		var env envelope
		err := a.client.PostJSON(ctx, a.cfg.BaseURL+"/v2/payment-requests", a.headers(), body, &env)
		return &env, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create intent failed")
		return nil, err
	}
	var data createData
	if err := json.Unmarshal(raw, &data); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(apperr.Gateway("malformed create response: %v", err), "payos")
	}

	return &domain.Intent{
		OrderCode:     data.OrderCode,
		Amount:        decimal.NewFromInt(data.Amount),
		Description:   data.Description,
		CheckoutURL:   data.CheckoutURL,
		QRCode:        data.QRCode,
		AccountNumber: data.AccountNumber,
		AccountName:   data.AccountName,
		BankBin:       data.Bin,
		ExpiresAt:     req.ExpiresAt,
	}, nil
}

// VerifyIntent 查询支付单状态，不产生任何副作用。
func (a *PayOSHTTPAdapter) VerifyIntent(ctx context.Context, orderCode int64) (*domain.Verification, error) {
	ctx, span := a.tracer.Start(ctx, "payos.VerifyIntent")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.order_code", orderCode))

	raw, err := a.call(ctx, "verify_intent", func(ctx context.Context) (*envelope, error) {
		var env envelope
		err := a.client.GetJSON(ctx, fmt.Sprintf("%s/v2/payment-requests/%d", a.cfg.BaseURL, orderCode), a.headers(), &env)
		return &env, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify intent failed")
		return nil, err
	}
	var data infoData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(apperr.Gateway("malformed info response: %v", err), "payos")
	}

	status := mapStatus(data.Status)
	span.SetAttributes(attribute.String("payment.status", string(status)))
	return &domain.Verification{
		OrderCode:     orderCode,
		Status:        status,
		SettledAmount: decimal.NewFromInt(data.AmountPaid),
	}, nil
}

func mapStatus(s string) domain.IntentStatus {
	switch strings.ToUpper(s) {
	case "PAID":
		return domain.IntentPaid
	case "EXPIRED":
		return domain.IntentExpired
	case "CANCELLED":
		return domain.IntentCancelled
	case "FAILED":
		return domain.IntentFailed
	default:
		return domain.IntentPending
	}
}

type webhookBody struct {
	Code      string         `json:"code"`
	Desc      string         `json:"desc"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data"`
	Signature string         `json:"signature"`
}

// VerifyWebhook 校验回调签名并取出关键字段，签名不符返回 Unauthorized。
func (a *PayOSHTTPAdapter) VerifyWebhook(body []byte) (*domain.WebhookData, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var wb webhookBody
	if err := dec.Decode(&wb); err != nil {
		return nil, apperr.Invalid("malformed webhook body: %v", err)
	}
	if wb.Data == nil || wb.Signature == "" {
		return nil, apperr.Invalid("webhook body missing data or signature")
	}
	if !verify(a.cfg.ChecksumKey, flatten(wb.Data), wb.Signature) {
		return nil, apperr.Unauthorized("webhook signature mismatch")
	}

	fields := flatten(wb.Data)
	orderCode, err := strconv.ParseInt(fields["orderCode"], 10, 64)
	if err != nil {
		return nil, apperr.Invalid("webhook orderCode %q is not numeric", fields["orderCode"])
	}
	amount, err := decimal.NewFromString(fields["amount"])
	if err != nil {
		return nil, apperr.Invalid("webhook amount %q is not numeric", fields["amount"])
	}
	return &domain.WebhookData{
		OrderCode: orderCode,
		Amount:    amount,
		Success:   wb.Success && wb.Code == codeSuccess,
		Reference: fields["reference"],
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
