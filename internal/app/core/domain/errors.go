package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount 金額必須為正數
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrLimitExceeded 金額超過單筆上限
	ErrLimitExceeded = errors.New("amount exceeds limit")

	// ErrInsufficientFunds 帳戶餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientPool 銀行營運資金不足
	ErrInsufficientPool = errors.New("insufficient operating funds")

	// ErrExceedsBalance 還款金額超過未償餘額
	ErrExceedsBalance = errors.New("amount exceeds outstanding balance")

	// ErrInvalidRate 利率超出允許範圍
	ErrInvalidRate = errors.New("interest rate out of range")

	// ErrZeroBalanceInterest 未償餘額為零時不可計息
	ErrZeroBalanceInterest = errors.New("cannot apply interest to a zero balance")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrNonZeroOutstanding 尚有未償餘額，不可關戶
	ErrNonZeroOutstanding = errors.New("outstanding balance must be zero")

	// ErrJournalWriteFailed 日誌寫入失敗
	ErrJournalWriteFailed = errors.New("journal write failed")

	// ErrLedgerStopped 帳本引擎已停止
	ErrLedgerStopped = errors.New("ledger engine stopped")

	// ErrLedgerNotStarted 帳本引擎尚未啟動
	ErrLedgerNotStarted = errors.New("ledger engine not started")
)

// Op 標示觸發錯誤的操作，LimitExceeded 依此區分是哪一個上限
type Op string

const (
	OpOpenAccount      Op = "open_account"
	OpCloseAccount     Op = "close_account"
	OpDeposit          Op = "deposit"
	OpWithdraw         Op = "withdraw"
	OpGrantOutstanding Op = "grant_outstanding"
	OpRepayOutstanding Op = "repay_outstanding"
	OpApplyInterest    Op = "apply_interest"
	OpLookup           Op = "lookup"
	OpSetLimits        Op = "set_limits"
)

// LedgerError carries the structured data of a rejected operation.
// Kind is always one of the sentinels above, so callers can use errors.Is.
// Bound holds the limit or the available quantity, depending on Kind.
type LedgerError struct {
	Kind   error
	Op     Op
	Owner  string
	Amount decimal.Decimal
	Bound  decimal.Decimal
}

func (e *LedgerError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Owner != "" {
		fmt.Fprintf(&b, " (owner=%s)", e.Owner)
	}

	switch {
	case errors.Is(e.Kind, ErrLimitExceeded):
		fmt.Fprintf(&b, " requested=%s limit=%s", e.Amount, e.Bound)
	case errors.Is(e.Kind, ErrInsufficientFunds), errors.Is(e.Kind, ErrInsufficientPool), errors.Is(e.Kind, ErrExceedsBalance):
		fmt.Fprintf(&b, " requested=%s available=%s", e.Amount, e.Bound)
	case errors.Is(e.Kind, ErrInvalidRate), errors.Is(e.Kind, ErrZeroBalanceInterest):
		fmt.Fprintf(&b, " rate=%s%%", e.Amount)
	case errors.Is(e.Kind, ErrNonZeroOutstanding):
		fmt.Fprintf(&b, " outstanding=%s", e.Amount)
	case errors.Is(e.Kind, ErrInvalidAmount):
		fmt.Fprintf(&b, " amount=%s", e.Amount)
	}
	return b.String()
}

func (e *LedgerError) Unwrap() error {
	return e.Kind
}

// newError 建立結構化錯誤
func newError(kind error, op Op, owner string, amount, bound decimal.Decimal) *LedgerError {
	return &LedgerError{Kind: kind, Op: op, Owner: owner, Amount: amount, Bound: bound}
}

// InvalidAmount 金額非正數
func InvalidAmount(op Op, owner string, amount decimal.Decimal) error {
	return newError(ErrInvalidAmount, op, owner, amount, decimal.Zero)
}

// LimitExceeded 金額超過上限
func LimitExceeded(op Op, owner string, amount, limit decimal.Decimal) error {
	return newError(ErrLimitExceeded, op, owner, amount, limit)
}

// InsufficientFunds 帳戶餘額不足
func InsufficientFunds(op Op, owner string, requested, available decimal.Decimal) error {
	return newError(ErrInsufficientFunds, op, owner, requested, available)
}

// InsufficientPool 營運資金不足
func InsufficientPool(op Op, owner string, requested, available decimal.Decimal) error {
	return newError(ErrInsufficientPool, op, owner, requested, available)
}

// ExceedsBalance 超過未償餘額
func ExceedsBalance(op Op, owner string, requested, outstanding decimal.Decimal) error {
	return newError(ErrExceedsBalance, op, owner, requested, outstanding)
}

// InvalidRate 利率超出範圍
func InvalidRate(owner string, rate decimal.Decimal) error {
	return newError(ErrInvalidRate, OpApplyInterest, owner, rate, decimal.Zero)
}

// ZeroBalanceInterest 零餘額計息
func ZeroBalanceInterest(owner string, rate decimal.Decimal) error {
	return newError(ErrZeroBalanceInterest, OpApplyInterest, owner, rate, decimal.Zero)
}

// AccountNotFound 找不到帳戶
func AccountNotFound(op Op, owner string) error {
	return newError(ErrAccountNotFound, op, owner, decimal.Zero, decimal.Zero)
}

// AccountAlreadyExists 帳戶重複
func AccountAlreadyExists(owner string) error {
	return newError(ErrAccountAlreadyExists, OpOpenAccount, owner, decimal.Zero, decimal.Zero)
}

// NonZeroOutstanding 尚有未償餘額
func NonZeroOutstanding(owner string, outstanding decimal.Decimal) error {
	return newError(ErrNonZeroOutstanding, OpCloseAccount, owner, outstanding, decimal.Zero)
}

// AsLedgerError 取出結構化錯誤
func AsLedgerError(err error) (*LedgerError, bool) {
	var le *LedgerError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// reasons 錯誤種類與短名稱的對照，順序即比對順序
var reasons = []struct {
	kind   error
	reason string
}{
	{ErrInvalidAmount, "invalid_amount"},
	{ErrLimitExceeded, "limit_exceeded"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrInsufficientPool, "insufficient_pool"},
	{ErrExceedsBalance, "exceeds_balance"},
	{ErrInvalidRate, "invalid_rate"},
	{ErrZeroBalanceInterest, "zero_balance_interest"},
	{ErrAccountNotFound, "account_not_found"},
	{ErrAccountAlreadyExists, "duplicate_account"},
	{ErrNonZeroOutstanding, "non_zero_outstanding"},
	{ErrJournalWriteFailed, "journal_write_failed"},
	{ErrLedgerStopped, "ledger_stopped"},
	{ErrLedgerNotStarted, "ledger_not_started"},
}

// Reason 回傳錯誤種類的短名稱，供 log、metrics 與 gRPC 錯誤細節使用
func Reason(err error) string {
	if err == nil {
		return "ok"
	}
	for _, r := range reasons {
		if errors.Is(err, r.kind) {
			return r.reason
		}
	}
	return "internal"
}

// KindOf 是 Reason 的反查，未知名稱回傳 nil
func KindOf(reason string) error {
	for _, r := range reasons {
		if r.reason == reason {
			return r.kind
		}
	}
	return nil
}
