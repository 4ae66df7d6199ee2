package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型
type TransactionType uint8

const (
	TransactionTypeOpenAccount TransactionType = iota + 1
	TransactionTypeCloseAccount
	TransactionTypeDeposit
	TransactionTypeWithdraw
	TransactionTypeGrantOutstanding
	TransactionTypeRepayOutstanding
	TransactionTypeApplyInterest
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeOpenAccount:
		return "open_account"
	case TransactionTypeCloseAccount:
		return "close_account"
	case TransactionTypeDeposit:
		return "deposit"
	case TransactionTypeWithdraw:
		return "withdraw"
	case TransactionTypeGrantOutstanding:
		return "grant_outstanding"
	case TransactionTypeRepayOutstanding:
		return "repay_outstanding"
	case TransactionTypeApplyInterest:
		return "apply_interest"
	default:
		return "unknown"
	}
}

// FundsDelta 回傳此類交易對營運資金的影響，計息不影響資金
func (t TransactionType) FundsDelta(amount decimal.Decimal) (decimal.Decimal, bool) {
	switch t {
	case TransactionTypeOpenAccount, TransactionTypeDeposit, TransactionTypeRepayOutstanding:
		return amount, true
	case TransactionTypeCloseAccount, TransactionTypeWithdraw, TransactionTypeGrantOutstanding:
		return amount.Neg(), true
	case TransactionTypeApplyInterest:
		return decimal.Zero, true
	default:
		return decimal.Zero, false
	}
}

// Transaction 一筆已通過驗證、即將套用的帳務變更，寫入 journal 用
type Transaction struct {
	// Sequence: 由帳本分配的遞增序號
	Sequence uint64 `json:"seq"`
	// ID: journal 內唯一識別
	ID uuid.UUID `json:"id"`
	// RefID: 呼叫端提供的追蹤號，可為空
	RefID string          `json:"ref_id,omitempty"`
	Type  TransactionType `json:"type"`
	Owner string          `json:"owner,omitempty"`
	// Amount: 金額；計息時為利率百分比
	Amount decimal.Decimal `json:"amount"`
	// FundsAfter: 套用後的營運資金
	FundsAfter decimal.Decimal `json:"funds_after"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewTransaction 建立交易紀錄，ID 與時間自動產生
func NewTransaction(typ TransactionType, owner string, amount decimal.Decimal) *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		Type:      typ,
		Owner:     owner,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
}

// Receipt 一次成功變更的結果
type Receipt struct {
	TransactionID  uuid.UUID       `json:"transaction_id"`
	Sequence       uint64          `json:"seq"`
	Account        AccountSnapshot `json:"account"`
	OperatingFunds decimal.Decimal `json:"operating_funds"`
}
