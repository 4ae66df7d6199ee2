package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

// Ledger 是帳務系統的介面
//
// 每個方法對呼叫端而言皆為原子操作：全部成功，或在任何變更前失敗。
type Ledger interface {
	// OpenAccount 開戶並將起始存款計入營運資金
	OpenAccount(ctx context.Context, owner string, startingDeposit decimal.Decimal) (domain.Receipt, error)
	// CloseAccount 關戶並自營運資金扣除帳戶餘額
	CloseAccount(ctx context.Context, owner string) (domain.Receipt, error)
	Deposit(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error)
	Withdraw(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error)
	// GrantOutstanding 撥款 (貸款)
	GrantOutstanding(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error)
	// RepayOutstanding 還款
	RepayOutstanding(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error)
	// ApplyInterest 對未償餘額計息 (百分比)
	ApplyInterest(ctx context.Context, owner string, ratePercent decimal.Decimal) (domain.Receipt, error)

	GetAccountBalance(ctx context.Context, owner string) (decimal.Decimal, error)
	GetOutstandingBalance(ctx context.Context, owner string) (decimal.Decimal, error)
	GetAccount(ctx context.Context, owner string) (domain.AccountSnapshot, error)
	ListAccounts(ctx context.Context) ([]domain.AccountSnapshot, error)
	OperatingFunds(ctx context.Context) (decimal.Decimal, error)

	Limits(ctx context.Context) (domain.Limits, error)
	// SetLimits 立即生效，不回溯檢查既有餘額
	SetLimits(ctx context.Context, update domain.LimitsUpdate) (domain.Limits, error)
}
