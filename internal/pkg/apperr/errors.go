// Package apperr 定义跨上下文共享的错误分类。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 是错误的大类，HTTP 层据此映射状态码。
type Kind string

const (
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindNotFound            Kind = "NOT_FOUND"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindIllegalTransition   Kind = "ILLEGAL_TRANSITION"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindGatewayUnavailable  Kind = "GATEWAY_UNAVAILABLE"
	KindPartialPersistence  Kind = "PARTIAL_PERSISTENCE"
	KindInternal            Kind = "INTERNAL"
)

// Error 是带分类与业务码的错误。
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is 让具体错误同时匹配它所属的大类，例如 errors.Is(ErrEmptyCart, ErrInvalidInput)。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// New 创建一个新的分类错误。
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrIllegalTransition   = &Error{Kind: KindIllegalTransition, Message: "illegal transition"}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Message: "insufficient balance"}
	ErrGatewayUnavailable  = &Error{Kind: KindGatewayUnavailable, Message: "payment gateway unavailable"}
	ErrPartialPersistence  = &Error{Kind: KindPartialPersistence, Message: "partial persistence"}
	ErrInternal            = &Error{Kind: KindInternal, Message: "internal error"}

	ErrEmptyCart       = New(KindInvalidInput, "EMPTY_CART", "cart is empty")
	ErrAddressNotOwned = New(KindUnauthorized, "ADDRESS_NOT_OWNED", "address does not belong to the customer")
	ErrWalletNotFound  = New(KindNotFound, "WALLET_NOT_FOUND", "wallet not found")
	ErrOrderNotFound   = New(KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrDuplicate       = New(KindInternal, "DUPLICATE_KEY", "duplicate key")
)

// KindOf 返回 err 链上第一个分类错误的大类，未分类的错误视为 Internal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Invalid 构造一个带说明的 InvalidInput 错误。
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NotFound 构造一个带说明的 NotFound 错误。
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized 构造一个带说明的 Unauthorized 错误。
func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Illegal 构造一个带说明的 IllegalTransition 错误。
func Illegal(format string, args ...any) *Error {
	return &Error{Kind: KindIllegalTransition, Message: fmt.Sprintf(format, args...)}
}

// Gateway 构造一个带说明的 GatewayUnavailable 错误。
func Gateway(format string, args ...any) *Error {
	return &Error{Kind: KindGatewayUnavailable, Message: fmt.Sprintf(format, args...)}
}
