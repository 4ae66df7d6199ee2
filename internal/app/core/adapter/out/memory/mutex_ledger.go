package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	mu: 整個方法即臨界區，檢查與變更之間不會被插隊
//	book: 帳戶、營運資金與上限
type MutexLedger struct {
	mu   sync.RWMutex
	book *book
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	limits: 單筆存款/提款/撥款上限
//	journal: 交易日誌，可為 nil
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 上限不合法
func NewMutexLedger(limits domain.Limits, journal Journal) (*MutexLedger, error) {
	b, err := newBook(limits, journal)
	if err != nil {
		return nil, err
	}
	return &MutexLedger{book: b}, nil
}

// OpenAccount 開戶
func (m *MutexLedger) OpenAccount(ctx context.Context, owner string, startingDeposit decimal.Decimal) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.openAccount(ctx, owner, startingDeposit)
}

// CloseAccount 關戶
func (m *MutexLedger) CloseAccount(ctx context.Context, owner string) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.closeAccount(ctx, owner)
}

// Deposit 存款
func (m *MutexLedger) Deposit(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.deposit(ctx, owner, amount)
}

// Withdraw 提款
func (m *MutexLedger) Withdraw(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.withdraw(ctx, owner, amount)
}

// GrantOutstanding 撥款
func (m *MutexLedger) GrantOutstanding(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.grantOutstanding(ctx, owner, amount)
}

// RepayOutstanding 還款
func (m *MutexLedger) RepayOutstanding(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.repayOutstanding(ctx, owner, amount)
}

// ApplyInterest 計息
func (m *MutexLedger) ApplyInterest(ctx context.Context, owner string, ratePercent decimal.Decimal) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.applyInterest(ctx, owner, ratePercent)
}

// GetAccountBalance 取得指定帳戶的當前餘額
func (m *MutexLedger) GetAccountBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.accountBalance(owner)
}

// GetOutstandingBalance 取得指定帳戶的未償餘額
func (m *MutexLedger) GetOutstandingBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.outstandingBalance(owner)
}

func (m *MutexLedger) GetAccount(ctx context.Context, owner string) (domain.AccountSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.account(owner)
}

func (m *MutexLedger) ListAccounts(ctx context.Context) ([]domain.AccountSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.listAccounts(), nil
}

func (m *MutexLedger) OperatingFunds(ctx context.Context) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.operatingFunds, nil
}

func (m *MutexLedger) Limits(ctx context.Context) (domain.Limits, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.limits, nil
}

func (m *MutexLedger) SetLimits(ctx context.Context, update domain.LimitsUpdate) (domain.Limits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.setLimits(update)
}

var _ usecase.Ledger = (*MutexLedger)(nil)
