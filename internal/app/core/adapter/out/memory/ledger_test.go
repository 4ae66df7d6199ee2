package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func defaultLimits() domain.Limits {
	return domain.Limits{
		MaxDeposit:     d("10000"),
		MaxWithdraw:    d("5000"),
		MaxOutstanding: d("20000"),
	}
}

type recordingJournal struct {
	mu      sync.Mutex
	entries []domain.Transaction
	fail    error
}

func (j *recordingJournal) Append(tran *domain.Transaction) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.entries = append(j.entries, *tran)
	return nil
}

type engine struct {
	name string
	new  func(t *testing.T, limits domain.Limits, journal Journal) usecase.Ledger
}

var engines = []engine{
	{
		name: "mutex",
		new: func(t *testing.T, limits domain.Limits, journal Journal) usecase.Ledger {
			l, err := NewMutexLedger(limits, journal)
			require.NoError(t, err)
			return l
		},
	},
	{
		name: "lmax",
		new: func(t *testing.T, limits domain.Limits, journal Journal) usecase.Ledger {
			l, err := NewLMAXLedger(limits, journal)
			require.NoError(t, err)
			ctx, cancel := context.WithCancel(context.Background())
			l.Start(ctx)
			t.Cleanup(func() {
				cancel()
				<-l.Done()
			})
			return l
		},
	},
}

// forEachEngine 讓同一組測試同時跑在兩種實作上
func forEachEngine(t *testing.T, fn func(t *testing.T, newLedger func(journal Journal) usecase.Ledger)) {
	for _, e := range engines {
		e := e
		t.Run(e.name, func(t *testing.T) {
			fn(t, func(journal Journal) usecase.Ledger {
				return e.new(t, defaultLimits(), journal)
			})
		})
	}
}

func funds(t *testing.T, l usecase.Ledger) decimal.Decimal {
	t.Helper()
	f, err := l.OperatingFunds(context.Background())
	require.NoError(t, err)
	return f
}

func TestNewLedgerRejectsInvalidLimits(t *testing.T) {
	bad := defaultLimits()
	bad.MaxWithdraw = decimal.Zero

	_, err := NewMutexLedger(bad, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = NewLMAXLedger(bad, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestLedgerLifecycle(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		ctx := context.Background()
		l := newLedger(nil)

		receipt, err := l.OpenAccount(ctx, "A", d("5000"))
		require.NoError(t, err)
		assertDecimal(t, "5000", receipt.OperatingFunds)
		assertDecimal(t, "5000", receipt.Account.Balance)
		assert.Equal(t, uint64(1), receipt.Sequence)

		_, err = l.Deposit(ctx, "A", d("1000"))
		require.NoError(t, err)
		_, err = l.Withdraw(ctx, "A", d("500"))
		require.NoError(t, err)

		balance, err := l.GetAccountBalance(ctx, "A")
		require.NoError(t, err)
		assertDecimal(t, "5500", balance)
		assertDecimal(t, "5500", funds(t, l))

		receipt, err = l.CloseAccount(ctx, "A")
		require.NoError(t, err)
		assertDecimal(t, "0", receipt.OperatingFunds)
		assertDecimal(t, "5500", receipt.Account.Balance)

		_, err = l.GetAccountBalance(ctx, "A")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})
}

func TestLedgerOutstandingRoundTrip(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		ctx := context.Background()
		l := newLedger(nil)

		_, err := l.OpenAccount(ctx, "A", d("5000"))
		require.NoError(t, err)
		before := funds(t, l)

		receipt, err := l.GrantOutstanding(ctx, "A", d("2000"))
		require.NoError(t, err)
		assertDecimal(t, "3000", receipt.OperatingFunds)
		assertDecimal(t, "2000", receipt.Account.Outstanding)
		// 撥款不影響現金餘額
		assertDecimal(t, "5000", receipt.Account.Balance)

		receipt, err = l.RepayOutstanding(ctx, "A", d("2000"))
		require.NoError(t, err)
		assertDecimal(t, "0", receipt.Account.Outstanding)
		assert.True(t, before.Equal(receipt.OperatingFunds))
	})
}

func TestLedgerDepositBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr error
	}{
		{name: "exactly max deposit", amount: "10000"},
		{name: "one cent over", amount: "10000.01", wantErr: domain.ErrLimitExceeded},
		{name: "zero", amount: "0", wantErr: domain.ErrInvalidAmount},
		{name: "negative", amount: "-1", wantErr: domain.ErrInvalidAmount},
	}

	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ctx := context.Background()
				l := newLedger(nil)
				_, err := l.OpenAccount(ctx, "A", d("100"))
				require.NoError(t, err)

				_, err = l.Deposit(ctx, "A", d(tt.amount))
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
					assertDecimal(t, "100", funds(t, l))
					return
				}
				require.NoError(t, err)
				assertDecimal(t, "10100", funds(t, l))
			})
		}
	})
}

func TestLedgerRejectionsLeaveStateUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		op      func(ctx context.Context, l usecase.Ledger) error
		wantErr error
	}{
		{
			name: "withdraw over limit",
			op: func(ctx context.Context, l usecase.Ledger) error {
				_, err := l.Withdraw(ctx, "A", d("5000.01"))
				return err
			},
			wantErr: domain.ErrLimitExceeded,
		},
		{
			name: "withdraw more than balance",
			op: func(ctx context.Context, l usecase.Ledger) error {
				_, err := l.Withdraw(ctx, "B", d("1500"))
				return err
			},
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name: "grant over limit",
			op: func(ctx context.Context, l usecase.Ledger) error {
				_, err := l.GrantOutstanding(ctx, "A", d("20000.01"))
				return err
			},
			wantErr: domain.ErrLimitExceeded,
		},
		{
			name: "grant more than pool",
			op: func(ctx context.Context, l usecase.Ledger) error {
				_, err := l.GrantOutstanding(ctx, "A", d("7000"))
				return err
			},
			wantErr: domain.ErrInsufficientPool,
		},
		{
			name: "repay more than outstanding",
			op: func(ctx context.Context, l usecase.Ledger) error {
				_, err := l.RepayOutstanding(ctx, "A", d("1"))
				return err
			},
			wantErr: domain.ErrExceedsBalance,
		},
		{
			name: "repay zero",
			op: func(ctx context.Context, l usecase.Ledger) error {
				_, err := l.RepayOutstanding(ctx, "A", d("0"))
				return err
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "open duplicate",
			op: func(ctx context.Context, l usecase.Ledger) error {
				_, err := l.OpenAccount(ctx, "A", d("100"))
				return err
			},
			wantErr: domain.ErrAccountAlreadyExists,
		},
		{
			name: "deposit to unknown owner",
			op: func(ctx context.Context, l usecase.Ledger) error {
				_, err := l.Deposit(ctx, "nobody", d("100"))
				return err
			},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name: "interest on zero outstanding",
			op: func(ctx context.Context, l usecase.Ledger) error {
				_, err := l.ApplyInterest(ctx, "A", d("5"))
				return err
			},
			wantErr: domain.ErrZeroBalanceInterest,
		},
	}

	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ctx := context.Background()
				journal := &recordingJournal{}
				l := newLedger(journal)
				_, err := l.OpenAccount(ctx, "A", d("5000"))
				require.NoError(t, err)
				_, err = l.OpenAccount(ctx, "B", d("1000"))
				require.NoError(t, err)

				before, err := l.ListAccounts(ctx)
				require.NoError(t, err)

				err = tt.op(ctx, l)
				assert.ErrorIs(t, err, tt.wantErr)

				after, err := l.ListAccounts(ctx)
				require.NoError(t, err)
				assert.Equal(t, before, after)
				assertDecimal(t, "6000", funds(t, l))
				assert.Len(t, journal.entries, 2)
			})
		}
	})
}

func TestLedgerCloseGuards(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		ctx := context.Background()
		l := newLedger(nil)
		_, err := l.OpenAccount(ctx, "A", d("5000"))
		require.NoError(t, err)
		_, err = l.GrantOutstanding(ctx, "A", d("1000"))
		require.NoError(t, err)

		_, err = l.CloseAccount(ctx, "A")
		assert.ErrorIs(t, err, domain.ErrNonZeroOutstanding)

		_, err = l.RepayOutstanding(ctx, "A", d("1000"))
		require.NoError(t, err)
		_, err = l.CloseAccount(ctx, "A")
		require.NoError(t, err)

		_, err = l.CloseAccount(ctx, "A")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)

		// 關戶後可重新開戶
		_, err = l.OpenAccount(ctx, "A", d("10"))
		assert.NoError(t, err)
	})
}

func TestLedgerCloseRequiresPoolCoverage(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		ctx := context.Background()
		journal := &recordingJournal{}
		l := newLedger(journal)
		_, err := l.OpenAccount(ctx, "A", d("5000"))
		require.NoError(t, err)
		_, err = l.OpenAccount(ctx, "B", d("1000"))
		require.NoError(t, err)
		// 撥款把營運資金用光
		_, err = l.GrantOutstanding(ctx, "A", d("6000"))
		require.NoError(t, err)
		assertDecimal(t, "0", funds(t, l))

		_, err = l.CloseAccount(ctx, "B")
		assert.ErrorIs(t, err, domain.ErrInsufficientPool)

		balance, err := l.GetAccountBalance(ctx, "B")
		require.NoError(t, err)
		assertDecimal(t, "1000", balance)
		assertDecimal(t, "0", funds(t, l))
		assert.Len(t, journal.entries, 3)

		// A 還款後資金足夠，B 可以關戶
		_, err = l.RepayOutstanding(ctx, "A", d("1000"))
		require.NoError(t, err)
		receipt, err := l.CloseAccount(ctx, "B")
		require.NoError(t, err)
		assertDecimal(t, "0", receipt.OperatingFunds)
	})
}

func TestLedgerCheckOrdering(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		ctx := context.Background()
		l := newLedger(nil)

		// 金額檢查先於帳戶查找
		_, err := l.Deposit(ctx, "nobody", d("0"))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		_, err = l.Withdraw(ctx, "nobody", d("9999"))
		assert.ErrorIs(t, err, domain.ErrLimitExceeded)

		// 提款時營運資金檢查先於帳戶查找
		_, err = l.Withdraw(ctx, "nobody", d("10"))
		assert.ErrorIs(t, err, domain.ErrInsufficientPool)

		// 開戶的金額檢查先於重複檢查
		_, err = l.OpenAccount(ctx, "A", d("100"))
		require.NoError(t, err)
		_, err = l.OpenAccount(ctx, "A", d("-1"))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		_, err = l.OpenAccount(ctx, "A", d("10000.01"))
		assert.ErrorIs(t, err, domain.ErrLimitExceeded)

		// 利率檢查先於零餘額檢查
		_, err = l.ApplyInterest(ctx, "A", d("1000.01"))
		assert.ErrorIs(t, err, domain.ErrInvalidRate)
	})
}

func TestLedgerErrorCarriesContext(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		ctx := context.Background()
		l := newLedger(nil)
		_, err := l.OpenAccount(ctx, "A", d("5000"))
		require.NoError(t, err)

		_, err = l.Withdraw(ctx, "A", d("6000"))
		le, ok := domain.AsLedgerError(err)
		require.True(t, ok)
		assert.Equal(t, domain.OpWithdraw, le.Op)
		assertDecimal(t, "5000", le.Bound)

		_, err = l.RepayOutstanding(ctx, "A", d("1"))
		le, ok = domain.AsLedgerError(err)
		require.True(t, ok)
		assert.Equal(t, domain.OpRepayOutstanding, le.Op)
		assert.Equal(t, "A", le.Owner)
	})
}

func TestLedgerApplyInterest(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		ctx := context.Background()
		l := newLedger(nil)
		_, err := l.OpenAccount(ctx, "A", d("10000"))
		require.NoError(t, err)
		_, err = l.GrantOutstanding(ctx, "A", d("10000"))
		require.NoError(t, err)

		receipt, err := l.ApplyInterest(ctx, "A", d("5"))
		require.NoError(t, err)
		assertDecimal(t, "10500", receipt.Account.Outstanding)
		// 計息不改變營運資金
		assertDecimal(t, "0", receipt.OperatingFunds)

		outstanding, err := l.GetOutstandingBalance(ctx, "A")
		require.NoError(t, err)
		assertDecimal(t, "10500", outstanding)
	})
}

func TestLedgerJournalFailureLeavesStateUnchanged(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		ctx := context.Background()
		journal := &recordingJournal{}
		l := newLedger(journal)
		_, err := l.OpenAccount(ctx, "A", d("5000"))
		require.NoError(t, err)

		journal.mu.Lock()
		journal.fail = errors.New("disk full")
		journal.mu.Unlock()

		_, err = l.Deposit(ctx, "A", d("100"))
		assert.ErrorIs(t, err, domain.ErrJournalWriteFailed)
		_, err = l.OpenAccount(ctx, "B", d("100"))
		assert.ErrorIs(t, err, domain.ErrJournalWriteFailed)

		balance, err := l.GetAccountBalance(ctx, "A")
		require.NoError(t, err)
		assertDecimal(t, "5000", balance)
		assertDecimal(t, "5000", funds(t, l))
		_, err = l.GetAccount(ctx, "B")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)

		journal.mu.Lock()
		journal.fail = nil
		journal.mu.Unlock()

		// 失敗的交易不消耗序號
		receipt, err := l.Deposit(ctx, "A", d("100"))
		require.NoError(t, err)
		assert.Equal(t, uint64(2), receipt.Sequence)
	})
}

func TestLedgerJournalRecordsRefID(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		journal := &recordingJournal{}
		l := newLedger(journal)
		ctx := usecase.WithRefID(context.Background(), "ref-1")

		_, err := l.OpenAccount(ctx, "A", d("5000"))
		require.NoError(t, err)
		_, err = l.GrantOutstanding(ctx, "A", d("1000"))
		require.NoError(t, err)

		require.Len(t, journal.entries, 2)
		assert.Equal(t, "ref-1", journal.entries[0].RefID)
		assert.Equal(t, domain.TransactionTypeGrantOutstanding, journal.entries[1].Type)
		assertDecimal(t, "4000", journal.entries[1].FundsAfter)
	})
}

func TestLedgerLookupsAreIdempotent(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		ctx := context.Background()
		l := newLedger(nil)
		_, err := l.OpenAccount(ctx, "B", d("200"))
		require.NoError(t, err)
		_, err = l.OpenAccount(ctx, "A", d("100"))
		require.NoError(t, err)

		first, err := l.ListAccounts(ctx)
		require.NoError(t, err)
		second, err := l.ListAccounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		require.Len(t, first, 2)
		assert.Equal(t, "A", first[0].Owner)
		assert.Equal(t, "B", first[1].Owner)
	})
}

func TestLedgerSetLimits(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		ctx := context.Background()
		l := newLedger(nil)
		_, err := l.OpenAccount(ctx, "A", d("100"))
		require.NoError(t, err)

		smaller := d("50")
		limits, err := l.SetLimits(ctx, domain.LimitsUpdate{MaxDeposit: &smaller})
		require.NoError(t, err)
		assertDecimal(t, "50", limits.MaxDeposit)
		assertDecimal(t, "5000", limits.MaxWithdraw)

		_, err = l.Deposit(ctx, "A", d("60"))
		assert.ErrorIs(t, err, domain.ErrLimitExceeded)

		zero := decimal.Zero
		_, err = l.SetLimits(ctx, domain.LimitsUpdate{MaxOutstanding: &zero})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		current, err := l.Limits(ctx)
		require.NoError(t, err)
		assertDecimal(t, "50", current.MaxDeposit)
		assertDecimal(t, "20000", current.MaxOutstanding)
	})
}

func TestLedgerConcurrentConservation(t *testing.T) {
	forEachEngine(t, func(t *testing.T, newLedger func(Journal) usecase.Ledger) {
		ctx := context.Background()
		l := newLedger(nil)
		owners := []string{"A", "B", "C", "D"}
		for _, owner := range owners {
			_, err := l.OpenAccount(ctx, owner, d("1000"))
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		for _, owner := range owners {
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(owner string, i int) {
					defer wg.Done()
					switch i % 4 {
					case 0:
						_, _ = l.Deposit(ctx, owner, d("10"))
					case 1:
						_, _ = l.Withdraw(ctx, owner, d("7"))
					case 2:
						_, _ = l.GrantOutstanding(ctx, owner, d("25"))
					case 3:
						_, _ = l.RepayOutstanding(ctx, owner, d("5"))
					}
				}(owner, i)
			}
		}
		wg.Wait()

		// 營運資金 = 餘額總和 - 未償總和
		accounts, err := l.ListAccounts(ctx)
		require.NoError(t, err)
		expected := decimal.Zero
		for _, a := range accounts {
			assert.False(t, a.Balance.IsNegative())
			assert.False(t, a.Outstanding.IsNegative())
			expected = expected.Add(a.Balance).Sub(a.Outstanding)
		}
		assert.True(t, expected.Equal(funds(t, l)), "want %s, got %s", expected, funds(t, l))
	})
}

func TestLMAXLedgerStopped(t *testing.T) {
	l, err := NewLMAXLedger(defaultLimits(), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)

	_, err = l.OpenAccount(context.Background(), "A", d("100"))
	require.NoError(t, err)

	cancel()
	<-l.Done()

	_, err = l.Deposit(context.Background(), "A", d("1"))
	assert.ErrorIs(t, err, domain.ErrLedgerStopped)
}

func TestLMAXLedgerNotStarted(t *testing.T) {
	l, err := NewLMAXLedger(defaultLimits(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = l.OpenAccount(ctx, "A", d("100"))
	assert.ErrorIs(t, err, domain.ErrLedgerNotStarted)
	_, err = l.OperatingFunds(ctx)
	assert.ErrorIs(t, err, domain.ErrLedgerNotStarted)
	assert.Empty(t, l.requestChan)

	// 啟動後同一個實例即可使用
	engineCtx, stop := context.WithCancel(context.Background())
	l.Start(engineCtx)
	t.Cleanup(func() {
		stop()
		<-l.Done()
	})
	_, err = l.OpenAccount(ctx, "A", d("100"))
	require.NoError(t, err)
	assertDecimal(t, "100", funds(t, l))
}

func TestLMAXLedgerCallerContextCancelled(t *testing.T) {
	// run loop 卡在一筆請求上，輸送帶填滿後送出會被呼叫端 ctx 取消
	l, err := NewLMAXLedger(defaultLimits(), nil)
	require.NoError(t, err)
	engineCtx, stop := context.WithCancel(context.Background())
	l.Start(engineCtx)

	entered := make(chan struct{})
	release := make(chan struct{})
	l.requestChan <- &ledgerRequest{apply: func(*book) error {
		close(entered)
		<-release
		return nil
	}, Result: make(chan error, 1)}
	<-entered
	t.Cleanup(func() {
		close(release)
		stop()
		<-l.Done()
	})

	for i := 0; i < cap(l.requestChan); i++ {
		l.requestChan <- &ledgerRequest{apply: func(*book) error { return nil }, Result: make(chan error, 1)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.OpenAccount(ctx, "A", d("100"))
	assert.ErrorIs(t, err, context.Canceled)
}
