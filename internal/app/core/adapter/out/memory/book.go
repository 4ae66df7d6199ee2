package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

// Journal 接收每一筆即將套用的交易
type Journal interface {
	Append(tran *domain.Transaction) error
}

// book 是帳本的狀態機本體，本身不做任何同步；
// MutexLedger 與 LMAXLedger 負責保證同一時間只有一個呼叫者。
//
// 每個操作都是「全部檢查 → 寫 journal → 變更」，
// 檢查失敗或 journal 失敗時狀態完全不變。
type book struct {
	accounts       map[string]*domain.Account
	operatingFunds decimal.Decimal
	limits         domain.Limits
	journal        Journal
	sequence       uint64
}

func newBook(limits domain.Limits, journal Journal) (*book, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &book{
		accounts:       make(map[string]*domain.Account),
		operatingFunds: decimal.Zero,
		limits:         limits,
		journal:        journal,
	}, nil
}

// checkAmount 檢查金額為正數且不超過上限
func checkAmount(op domain.Op, owner string, amount, limit decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.InvalidAmount(op, owner, amount)
	}
	if amount.GreaterThan(limit) {
		return domain.LimitExceeded(op, owner, amount, limit)
	}
	return nil
}

// checkPool 檢查營運資金是否足以支付
func (b *book) checkPool(op domain.Op, owner string, amount decimal.Decimal) error {
	if amount.GreaterThan(b.operatingFunds) {
		return domain.InsufficientPool(op, owner, amount, b.operatingFunds)
	}
	return nil
}

func (b *book) lookup(op domain.Op, owner string) (*domain.Account, error) {
	account, ok := b.accounts[owner]
	if !ok {
		return nil, domain.AccountNotFound(op, owner)
	}
	return account, nil
}

// annotate 補上 domain 原語錯誤缺少的操作與帳戶資訊
func annotate(err error, op domain.Op, owner string) error {
	le, ok := domain.AsLedgerError(err)
	if !ok {
		return err
	}
	cp := *le
	cp.Op = op
	cp.Owner = owner
	return &cp
}

// record 分配序號並寫入 journal，成功後才允許變更狀態
func (b *book) record(ctx context.Context, typ domain.TransactionType, owner string, amount, fundsAfter decimal.Decimal) (*domain.Transaction, error) {
	tran := domain.NewTransaction(typ, owner, amount)
	tran.Sequence = b.sequence + 1
	tran.RefID = usecase.RefIDFromContext(ctx)
	tran.FundsAfter = fundsAfter

	if b.journal != nil {
		if err := b.journal.Append(tran); err != nil {
			return nil, fmt.Errorf("%w: %s seq=%d: %v", domain.ErrJournalWriteFailed, typ, tran.Sequence, err)
		}
	}
	b.sequence = tran.Sequence
	return tran, nil
}

func (b *book) receipt(tran *domain.Transaction, snapshot domain.AccountSnapshot) domain.Receipt {
	return domain.Receipt{
		TransactionID:  tran.ID,
		Sequence:       tran.Sequence,
		Account:        snapshot,
		OperatingFunds: b.operatingFunds,
	}
}

func (b *book) openAccount(ctx context.Context, owner string, startingDeposit decimal.Decimal) (domain.Receipt, error) {
	if err := checkAmount(domain.OpOpenAccount, owner, startingDeposit, b.limits.MaxDeposit); err != nil {
		return domain.Receipt{}, err
	}
	if _, ok := b.accounts[owner]; ok {
		return domain.Receipt{}, domain.AccountAlreadyExists(owner)
	}

	fundsAfter := b.operatingFunds.Add(startingDeposit)
	tran, err := b.record(ctx, domain.TransactionTypeOpenAccount, owner, startingDeposit, fundsAfter)
	if err != nil {
		return domain.Receipt{}, err
	}

	account := domain.NewAccount(owner, startingDeposit)
	b.accounts[owner] = account
	b.operatingFunds = fundsAfter
	return b.receipt(tran, account.Snapshot()), nil
}

func (b *book) closeAccount(ctx context.Context, owner string) (domain.Receipt, error) {
	account, err := b.lookup(domain.OpCloseAccount, owner)
	if err != nil {
		return domain.Receipt{}, err
	}
	if outstanding := account.OutstandingBalance(); outstanding.IsPositive() {
		return domain.Receipt{}, domain.NonZeroOutstanding(owner, outstanding)
	}
	payout := account.Balance()
	if err := b.checkPool(domain.OpCloseAccount, owner, payout); err != nil {
		return domain.Receipt{}, err
	}

	fundsAfter := b.operatingFunds.Sub(payout)
	tran, err := b.record(ctx, domain.TransactionTypeCloseAccount, owner, payout, fundsAfter)
	if err != nil {
		return domain.Receipt{}, err
	}

	snapshot := account.Snapshot()
	delete(b.accounts, owner)
	b.operatingFunds = fundsAfter
	return b.receipt(tran, snapshot), nil
}

func (b *book) deposit(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	if err := checkAmount(domain.OpDeposit, owner, amount, b.limits.MaxDeposit); err != nil {
		return domain.Receipt{}, err
	}
	account, err := b.lookup(domain.OpDeposit, owner)
	if err != nil {
		return domain.Receipt{}, err
	}

	fundsAfter := b.operatingFunds.Add(amount)
	tran, err := b.record(ctx, domain.TransactionTypeDeposit, owner, amount, fundsAfter)
	if err != nil {
		return domain.Receipt{}, err
	}

	account.Deposit(amount)
	b.operatingFunds = fundsAfter
	return b.receipt(tran, account.Snapshot()), nil
}

func (b *book) withdraw(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	if err := checkAmount(domain.OpWithdraw, owner, amount, b.limits.MaxWithdraw); err != nil {
		return domain.Receipt{}, err
	}
	if err := b.checkPool(domain.OpWithdraw, owner, amount); err != nil {
		return domain.Receipt{}, err
	}
	account, err := b.lookup(domain.OpWithdraw, owner)
	if err != nil {
		return domain.Receipt{}, err
	}
	if err := account.CheckSufficientFunds(amount); err != nil {
		return domain.Receipt{}, err
	}

	fundsAfter := b.operatingFunds.Sub(amount)
	tran, err := b.record(ctx, domain.TransactionTypeWithdraw, owner, amount, fundsAfter)
	if err != nil {
		return domain.Receipt{}, err
	}

	if err := account.Withdraw(amount); err != nil {
		// 已於上方檢查，不應發生
		return domain.Receipt{}, err
	}
	b.operatingFunds = fundsAfter
	return b.receipt(tran, account.Snapshot()), nil
}

func (b *book) grantOutstanding(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	if err := checkAmount(domain.OpGrantOutstanding, owner, amount, b.limits.MaxOutstanding); err != nil {
		return domain.Receipt{}, err
	}
	account, err := b.lookup(domain.OpGrantOutstanding, owner)
	if err != nil {
		return domain.Receipt{}, err
	}
	// 撥款前確認兩次：Outstanding 的預先確認，以及營運資金閘門
	if err := account.Outstanding().ConfirmAgainstPool(amount, b.operatingFunds); err != nil {
		return domain.Receipt{}, annotate(err, domain.OpGrantOutstanding, owner)
	}
	if err := b.checkPool(domain.OpGrantOutstanding, owner, amount); err != nil {
		return domain.Receipt{}, err
	}

	fundsAfter := b.operatingFunds.Sub(amount)
	tran, err := b.record(ctx, domain.TransactionTypeGrantOutstanding, owner, amount, fundsAfter)
	if err != nil {
		return domain.Receipt{}, err
	}

	if err := account.DrawOutstanding(amount); err != nil {
		return domain.Receipt{}, annotate(err, domain.OpGrantOutstanding, owner)
	}
	b.operatingFunds = fundsAfter
	return b.receipt(tran, account.Snapshot()), nil
}

func (b *book) repayOutstanding(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	// Outstanding.Subtract 不擋非正數，在這裡擋
	if !amount.IsPositive() {
		return domain.Receipt{}, domain.InvalidAmount(domain.OpRepayOutstanding, owner, amount)
	}
	account, err := b.lookup(domain.OpRepayOutstanding, owner)
	if err != nil {
		return domain.Receipt{}, err
	}
	if err := account.CheckOutstandingWithin(amount); err != nil {
		return domain.Receipt{}, annotate(err, domain.OpRepayOutstanding, owner)
	}

	fundsAfter := b.operatingFunds.Add(amount)
	tran, err := b.record(ctx, domain.TransactionTypeRepayOutstanding, owner, amount, fundsAfter)
	if err != nil {
		return domain.Receipt{}, err
	}

	if err := account.RepayOutstanding(amount); err != nil {
		return domain.Receipt{}, annotate(err, domain.OpRepayOutstanding, owner)
	}
	b.operatingFunds = fundsAfter
	return b.receipt(tran, account.Snapshot()), nil
}

// applyInterest 只改變欠款，營運資金不變
func (b *book) applyInterest(ctx context.Context, owner string, ratePercent decimal.Decimal) (domain.Receipt, error) {
	account, err := b.lookup(domain.OpApplyInterest, owner)
	if err != nil {
		return domain.Receipt{}, err
	}
	if err := account.Outstanding().CheckInterest(ratePercent); err != nil {
		return domain.Receipt{}, annotate(err, domain.OpApplyInterest, owner)
	}

	tran, err := b.record(ctx, domain.TransactionTypeApplyInterest, owner, ratePercent, b.operatingFunds)
	if err != nil {
		return domain.Receipt{}, err
	}

	if err := account.Outstanding().ApplyInterest(ratePercent); err != nil {
		return domain.Receipt{}, annotate(err, domain.OpApplyInterest, owner)
	}
	return b.receipt(tran, account.Snapshot()), nil
}

func (b *book) accountBalance(owner string) (decimal.Decimal, error) {
	account, err := b.lookup(domain.OpLookup, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance(), nil
}

func (b *book) outstandingBalance(owner string) (decimal.Decimal, error) {
	account, err := b.lookup(domain.OpLookup, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return account.OutstandingBalance(), nil
}

func (b *book) account(owner string) (domain.AccountSnapshot, error) {
	account, err := b.lookup(domain.OpLookup, owner)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	return account.Snapshot(), nil
}

// listAccounts 依 owner 排序回傳快照
func (b *book) listAccounts() []domain.AccountSnapshot {
	out := make([]domain.AccountSnapshot, 0, len(b.accounts))
	for _, account := range b.accounts {
		out = append(out, account.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

func (b *book) setLimits(update domain.LimitsUpdate) (domain.Limits, error) {
	next := update.Apply(b.limits)
	if err := next.Validate(); err != nil {
		return b.limits, err
	}
	b.limits = next
	return b.limits, nil
}
