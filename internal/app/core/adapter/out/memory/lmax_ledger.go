package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

// ledgerRequest 請求包裝，讓呼叫端可以等待結果
type ledgerRequest struct {
	apply  func(b *book) error
	Result chan error // 讓呼叫端等這個 channel
}

// LMAXLedger 以單一 goroutine 持有帳本狀態，
// 所有讀寫都經由 channel 排隊，不需要鎖。
// Start 之前的呼叫一律回傳 domain.ErrLedgerNotStarted。
type LMAXLedger struct {
	book *book
	// 輸送帶 負責接收請求
	requestChan chan *ledgerRequest
	// run loop 結束後關閉
	done      chan struct{}
	startOnce sync.Once
	started   atomic.Bool
	// Pool 減少 GC 壓力
	requestPool sync.Pool
}

// NewLMAXLedger 建立一個新的 LMAXLedger 實例，需呼叫 Start 才會開始處理
//
// 參數:
//
//	limits: 單筆上限
//	journal: 交易日誌，可為 nil
//
// 回傳:
//
//	*LMAXLedger: LMAXLedger 實例
//	error: 初始化錯誤
func NewLMAXLedger(limits domain.Limits, journal Journal) (*LMAXLedger, error) {
	b, err := newBook(limits, journal)
	if err != nil {
		return nil, err
	}
	return &LMAXLedger{
		book:        b,
		requestChan: make(chan *ledgerRequest, 1000), // Buffer 1000
		done:        make(chan struct{}),
		requestPool: sync.Pool{
			New: func() interface{} {
				return &ledgerRequest{
					Result: make(chan error, 1),
				}
			},
		},
	}, nil
}

// Start 啟動核心引擎 (非同步)，ctx 結束時處理完剩下的請求後停止
func (l *LMAXLedger) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		l.started.Store(true)
		go l.run(ctx)
	})
}

// Done 在引擎停止後關閉
func (l *LMAXLedger) Done() <-chan struct{} {
	return l.done
}

func (l *LMAXLedger) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的請求處理完
			l.drain()
			return
		case req := <-l.requestChan:
			req.Result <- req.apply(l.book)
		}
	}
}

func (l *LMAXLedger) drain() {
	for {
		select {
		case req := <-l.requestChan:
			req.Result <- req.apply(l.book)
		default:
			return
		}
	}
}

// submit 放入輸送帶並等待結果
//
// 一旦請求進入輸送帶就一定等到結果，避免呼叫端以為失敗但帳本已套用。
func (l *LMAXLedger) submit(ctx context.Context, apply func(b *book) error) error {
	// 沒有 run loop 的話請求會永遠卡在輸送帶
	if !l.started.Load() {
		return domain.ErrLedgerNotStarted
	}
	req := l.requestPool.Get().(*ledgerRequest)
	req.apply = apply
	// 清空 Channel
	select {
	case <-req.Result:
	default:
	}

	select {
	case l.requestChan <- req:
	case <-l.done:
		return domain.ErrLedgerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.Result:
		req.apply = nil
		l.requestPool.Put(req)
		return err
	case <-l.done:
		// run loop 在關閉 done 之前已回覆所有處理過的請求
		select {
		case err := <-req.Result:
			return err
		default:
			return domain.ErrLedgerStopped
		}
	}
}

func (l *LMAXLedger) OpenAccount(ctx context.Context, owner string, startingDeposit decimal.Decimal) (domain.Receipt, error) {
	var receipt domain.Receipt
	err := l.submit(ctx, func(b *book) (err error) {
		receipt, err = b.openAccount(ctx, owner, startingDeposit)
		return err
	})
	return receipt, err
}

func (l *LMAXLedger) CloseAccount(ctx context.Context, owner string) (domain.Receipt, error) {
	var receipt domain.Receipt
	err := l.submit(ctx, func(b *book) (err error) {
		receipt, err = b.closeAccount(ctx, owner)
		return err
	})
	return receipt, err
}

func (l *LMAXLedger) Deposit(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	var receipt domain.Receipt
	err := l.submit(ctx, func(b *book) (err error) {
		receipt, err = b.deposit(ctx, owner, amount)
		return err
	})
	return receipt, err
}

func (l *LMAXLedger) Withdraw(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	var receipt domain.Receipt
	err := l.submit(ctx, func(b *book) (err error) {
		receipt, err = b.withdraw(ctx, owner, amount)
		return err
	})
	return receipt, err
}

func (l *LMAXLedger) GrantOutstanding(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	var receipt domain.Receipt
	err := l.submit(ctx, func(b *book) (err error) {
		receipt, err = b.grantOutstanding(ctx, owner, amount)
		return err
	})
	return receipt, err
}

func (l *LMAXLedger) RepayOutstanding(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	var receipt domain.Receipt
	err := l.submit(ctx, func(b *book) (err error) {
		receipt, err = b.repayOutstanding(ctx, owner, amount)
		return err
	})
	return receipt, err
}

func (l *LMAXLedger) ApplyInterest(ctx context.Context, owner string, ratePercent decimal.Decimal) (domain.Receipt, error) {
	var receipt domain.Receipt
	err := l.submit(ctx, func(b *book) (err error) {
		receipt, err = b.applyInterest(ctx, owner, ratePercent)
		return err
	})
	return receipt, err
}

func (l *LMAXLedger) GetAccountBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.submit(ctx, func(b *book) (err error) {
		balance, err = b.accountBalance(owner)
		return err
	})
	return balance, err
}

func (l *LMAXLedger) GetOutstandingBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.submit(ctx, func(b *book) (err error) {
		balance, err = b.outstandingBalance(owner)
		return err
	})
	return balance, err
}

func (l *LMAXLedger) GetAccount(ctx context.Context, owner string) (domain.AccountSnapshot, error) {
	var snapshot domain.AccountSnapshot
	err := l.submit(ctx, func(b *book) (err error) {
		snapshot, err = b.account(owner)
		return err
	})
	return snapshot, err
}

func (l *LMAXLedger) ListAccounts(ctx context.Context) ([]domain.AccountSnapshot, error) {
	var accounts []domain.AccountSnapshot
	err := l.submit(ctx, func(b *book) error {
		accounts = b.listAccounts()
		return nil
	})
	return accounts, err
}

func (l *LMAXLedger) OperatingFunds(ctx context.Context) (decimal.Decimal, error) {
	var funds decimal.Decimal
	err := l.submit(ctx, func(b *book) error {
		funds = b.operatingFunds
		return nil
	})
	return funds, err
}

func (l *LMAXLedger) Limits(ctx context.Context) (domain.Limits, error) {
	var limits domain.Limits
	err := l.submit(ctx, func(b *book) error {
		limits = b.limits
		return nil
	})
	return limits, err
}

func (l *LMAXLedger) SetLimits(ctx context.Context, update domain.LimitsUpdate) (domain.Limits, error) {
	var limits domain.Limits
	err := l.submit(ctx, func(b *book) (err error) {
		limits, err = b.setLimits(update)
		return err
	})
	return limits, err
}

var _ usecase.Ledger = (*LMAXLedger)(nil)
